package rmilter

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCommandVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Command
	}{
		{"abort", "A", AbortFilterChecks{}},
		{"end of body", "E", EndOfBody{}},
		{"end of header", "N", EndOfHeader{}},
		{"quit", "Q", QuitCommunication{}},
		{"body chunk", "Bsome text", BodyChunk{Text: "some text"}},
		{"helo", "Hmail.example.org\x00", Helo{Message: "mail.example.org"}},
		{
			"connection inet",
			"Cmail.example.org\x004\x09\xeb192.168.0.1\x00",
			ConnectionInformation{
				Hostname: "mail.example.org",
				Family:   FamilyInet,
				Port:     2539,
				Address:  "192.168.0.1",
			},
		},
		{
			"connection unix",
			"Clocalhost\x00L\x00\x00/var/run/mta.sock\x00",
			ConnectionInformation{
				Hostname: "localhost",
				Family:   FamilyUnix,
				Port:     0,
				Address:  "/var/run/mta.sock",
			},
		},
		{
			"header",
			"LSubject\x00hello world\x00",
			Header{Name: "Subject", Value: "hello world"},
		},
		{
			"header with encoded word",
			"LSubject\x00=?utf-8?Q?f=C3=BCr_Sie?=\x00",
			Header{Name: "Subject", Value: "für Sie"},
		},
		{
			"mail from without trailing nul",
			"M<from@example.org>",
			MailFrom{Sender: "<from@example.org>"},
		},
		{
			"mail from with args",
			"M<from@example.org>\x00SIZE=1024",
			MailFrom{Sender: "<from@example.org>", Args: []string{"SIZE=1024"}},
		},
		{
			"mail from trailing nul keeps empty arg",
			"M<from@example.org>\x00",
			MailFrom{Sender: "<from@example.org>", Args: []string{""}},
		},
		{
			"recipient",
			"R<to@example.org>\x00ORCPT=rfc822;to@example.org",
			RecipientInformation{
				Recipient: "<to@example.org>",
				Args:      []string{"ORCPT=rfc822;to@example.org"},
			},
		},
		{
			"macros",
			"DMi\x00queue-id-1\x00{mail_host}\x00example.org\x00",
			DefineMacros{
				Cmd: CodeMail,
				Macros: []Macro{
					{Name: "i", Value: "queue-id-1"},
					{Name: "{mail_host}", Value: "example.org"},
				},
			},
		},
		{"macros without pairs", "DC", DefineMacros{Cmd: CodeConn}},
		{
			"option negotiation",
			"O\x00\x00\x00\x02\x00\x00\x00\x3f\x00\x00\x00\x7f",
			OptionNegotiation{
				Version:  2,
				Actions:  OptAction(0x3f),
				Protocol: OptProtocol(0x7f),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand([]byte(tt.payload))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

// The fixed OPTNEG example: version 2, all six action bits, all seven
// step-skip bits.
func TestParseOptionNegotiationBits(t *testing.T) {
	payload := []byte{
		'O',
		0x00, 0x00, 0x00, 0x02,
		0x00, 0x00, 0x00, 0x3f,
		0x00, 0x00, 0x00, 0x7f,
	}
	cmd, err := parseCommand(payload)
	if err != nil {
		t.Fatal(err)
	}
	optneg, ok := cmd.(OptionNegotiation)
	if !ok {
		t.Fatalf("got %T", cmd)
	}
	if optneg.Version != 2 {
		t.Fatal("wrong version:", optneg.Version)
	}
	for _, bit := range []OptAction{
		OptAddHeaders, OptChangeBody, OptAddRecipients,
		OptRemoveRecipients, OptChangeHeaders, OptQuarantine,
	} {
		if optneg.Actions&bit == 0 {
			t.Fatalf("action bit %#x not set", bit)
		}
	}
	for _, bit := range []OptProtocol{
		OptNoConnect, OptNoHelo, OptNoMailFrom, OptNoRecipient,
		OptNoBody, OptNoHeaders, OptNoEOH,
	} {
		if optneg.Protocol&bit == 0 {
			t.Fatalf("protocol bit %#x not set", bit)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"empty payload", "", ErrMissingMessageIdentifier},
		{"helo without text", "H", ErrIncompleteMessage},
		{"header without delimiter", "LSubject", ErrIncompleteMessage},
		{"macros without command byte", "D", ErrIncompleteMessage},
		{"macros odd field count", "DMi\x00queue-id\x00orphan\x00", ErrIncompleteMessage},
		{"optneg short", "O\x00\x00\x00\x02", ErrIncompleteMessage},
		{"optneg long", "O\x00\x00\x00\x02\x00\x00\x00\x00\x00\x00\x00\x00\xff", ErrIncompleteMessage},
		{"connection hostname unterminated", "Cmail.example.org", ErrIncompleteMessage},
		{"connection missing family", "Chost\x00", ErrIncompleteMessage},
		{"connection bad family", "Chost\x00X\x00\x19addr\x00", ErrIncompleteMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCommand([]byte(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseCommandTruncatedNumericFields(t *testing.T) {
	var numErr *NumericFieldError

	// family present, port cut short
	_, err := parseCommand([]byte("Chost\x004\x09"))
	if !errors.As(err, &numErr) {
		t.Fatalf("got %v", err)
	}

	// port present, address region missing entirely
	_, err = parseCommand([]byte("Chost\x004\x09\xeb"))
	if !errors.As(err, &numErr) {
		t.Fatalf("got %v", err)
	}
}

func TestParseCommandUnknownIdentifier(t *testing.T) {
	var unknownErr *UnknownIdentifierError

	_, err := parseCommand([]byte("Xwhatever"))
	if !errors.As(err, &unknownErr) {
		t.Fatalf("got %v", err)
	}
	if unknownErr.Identifier != 'X' {
		t.Fatal("wrong identifier:", unknownErr.Identifier)
	}

	// A no-payload command followed by stray bytes does not match any known
	// frame shape.
	_, err = parseCommand([]byte("Astray"))
	if !errors.As(err, &unknownErr) {
		t.Fatalf("got %v", err)
	}
}

func TestParseCommandLossyText(t *testing.T) {
	cmd, err := parseCommand([]byte{'B', 'o', 'k', 0xff, 0xfe, '!'})
	if err != nil {
		t.Fatal(err)
	}
	chunk := cmd.(BodyChunk)
	if chunk.Text == "" || chunk.Text[:2] != "ok" {
		t.Fatalf("got %q", chunk.Text)
	}
	for _, r := range chunk.Text {
		if r == 0xff || r == 0xfe {
			t.Fatalf("invalid bytes survived: %q", chunk.Text)
		}
	}
}
