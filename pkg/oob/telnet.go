package oob

// Telnet protocol bytes used by OOB negotiation.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	SE   byte = 240 // Subnegotiation End

	TeloptMSSP byte = 70
	TeloptGMCP byte = 201
)

// MSSP variable and value markers.
const (
	MSSPVar byte = 1
	MSSPVal byte = 2
)
