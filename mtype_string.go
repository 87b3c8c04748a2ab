package lorawan

// String implements fmt.Stringer. Hand-written in the shape stringer would
// generate for the go:generate directive above MType's declaration in
// phypayload.go, since this tree is never run through `go generate`.
func (m MType) String() string {
	names := [...]string{
		"JoinRequest",
		"JoinAccept",
		"UnconfirmedDataUp",
		"UnconfirmedDataDown",
		"ConfirmedDataUp",
		"ConfirmedDataDown",
		"RejoinRequest",
		"Proprietary",
	}
	if int(m) < len(names) {
		return names[m]
	}
	return "MType(invalid)"
}

// String implements fmt.Stringer, matching Major's go:generate directive.
func (m Major) String() string {
	if m == LoRaWANR1 {
		return "LoRaWANR1"
	}
	return "Major(invalid)"
}
