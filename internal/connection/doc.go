// Package connection implements the live channel Connection Manager.
//
// The Connection Manager:
//   - Owns exactly one logical WebSocket connection per client instance
//   - Sends a "ping" text heartbeat every 10s while connected
//   - Reconnects 3s after every close, without limit, until torn down
//   - Tags each underlying connection with a generation and drops frames
//     from superseded generations
//   - Decodes quote frames and hands them to an UpdateHandler
//
// Every transport event and timer firing runs on the event loop, so the
// manager's state has a single writer.
package connection
