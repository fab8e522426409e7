package handlers

// roomSeparator joins the two participant ids. User ids are canonical
// UUID strings, which never contain an underscore, so distinct pairs can
// never collide.
const roomSeparator = "_"

// RoomID derives the broadcast scope for a two-party conversation. The
// pair is sorted first, so RoomID(a, b) == RoomID(b, a) and either party
// can re-derive the room after a reconnect without a handshake.
func RoomID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + roomSeparator + b
}
