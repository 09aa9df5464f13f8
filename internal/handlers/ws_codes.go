// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the chat socket.
const (
	BadSubprotocolError    = 3000 // Client connected without the chat subprotocol.
	InvalidAuthTokenError  = 3001 // Session token missing, invalid or expired.
	InvalidConnectionError = 3003 // Connection does not exist or the user is not a member.
)
