/*
Package websockets implements the wire-level core of an RFC 6455
WebSocket client: frame types, the binary frame codec, client-side
masking, and the handshake accept-key derivation.

It does not dial connections or run an event loop itself — see the
client subpackage for the connection engine that drives a transport,
assembles messages out of frames, and answers control frames. This
package only concerns itself with turning Frame values into bytes and
back, and with the small set of pure checks (CheckHeader,
CheckCloseFrameData, CheckAccept) that the rest of the module relies
on to reject malformed input.
*/
package websockets
