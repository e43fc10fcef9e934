package rmilter

import "testing"

func TestOptActionBits(t *testing.T) {
	tests := []struct {
		name string
		bits OptAction
		set  []OptAction
	}{
		{"add recipients", 4, []OptAction{OptAddRecipients}},
		{"add headers and quarantine", 33, []OptAction{OptAddHeaders, OptQuarantine}},
		{"all defined", 0x3f, []OptAction{
			OptAddHeaders, OptChangeBody, OptAddRecipients,
			OptRemoveRecipients, OptChangeHeaders, OptQuarantine,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want OptAction
			for _, bit := range tt.set {
				want |= bit
			}
			if tt.bits != want {
				t.Fatalf("bits %#x, want %#x", tt.bits, want)
			}
		})
	}
}

func TestOptProtocolBits(t *testing.T) {
	tests := []struct {
		name string
		bits OptProtocol
		set  []OptProtocol
	}{
		{"no mail", 4, []OptProtocol{OptNoMailFrom}},
		{"no body", 16, []OptProtocol{OptNoBody}},
		{"no connect and no headers", 33, []OptProtocol{OptNoConnect, OptNoHeaders}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var want OptProtocol
			for _, bit := range tt.set {
				want |= bit
			}
			if tt.bits != want {
				t.Fatalf("bits %#x, want %#x", tt.bits, want)
			}
		})
	}
}

// Bits outside the defined set survive a decode/encode round trip untouched.
func TestOptionBitsTruncatingParse(t *testing.T) {
	payload := []byte{
		'O',
		0, 0, 0, 6,
		0x80, 0, 0, 0x01,
		0x40, 0, 0, 0x02,
	}
	cmd, err := parseCommand(payload)
	if err != nil {
		t.Fatal(err)
	}
	optneg := cmd.(OptionNegotiation)
	if optneg.Actions != 0x80000001 {
		t.Fatalf("actions %#x", optneg.Actions)
	}
	if optneg.Protocol != 0x40000002 {
		t.Fatalf("protocol %#x", optneg.Protocol)
	}

	reply := negotiate(optneg.Version, optneg.Actions, 0).bytes()
	if reply[5] != 0 || reply[8] != 6 {
		t.Fatalf("version not echoed: % x", reply[5:9])
	}
	if reply[9] != 0x80 || reply[12] != 0x01 {
		t.Fatalf("unknown action bits dropped: % x", reply[9:13])
	}
}
