// Command rmilter-check feeds a message read from stdin through a running
// milter and prints the action returned for every protocol step.
package main

import (
	"bufio"
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/emersion/go-message/textproto"

	"github.com/arnej/rmilter"
)

// maxBodyChunk is the chunk size used when streaming the message body.
const maxBodyChunk = 65535

func main() {
	transport := flag.String("transport", "unix", "Transport to use for milter connection, one of 'tcp', 'unix', 'tcp4' or 'tcp6'")
	address := flag.String("address", "", "Transport address, path for 'unix', address:port for 'tcp'")
	hostname := flag.String("hostname", "localhost", "Value to send in CONNECT message")
	family := flag.String("family", string(rmilter.FamilyInet), "Protocol family to send in CONNECT message")
	port := flag.Uint("port", 2525, "Port to send in CONNECT message")
	connAddr := flag.String("conn-addr", "127.0.0.1", "Connection address to send in CONNECT message")
	helo := flag.String("helo", "localhost", "Value to send in HELO message")
	mailFrom := flag.String("from", "from@example.org", "Value to send in MAIL message")
	rcptTo := flag.String("rcpt", "to@example.org", "Comma-separated list of values for RCPT messages")
	actionMask := flag.Uint("actions", uint(rmilter.OptAddHeaders|rmilter.OptChangeHeaders), "Bitmask value of actions we allow")
	disabledMsgs := flag.Uint("disabled-msgs", 0, "Bitmask of disabled protocol messages")
	flag.Parse()

	c := rmilter.NewClient(*transport, *address)

	s, err := c.Session(rmilter.OptAction(*actionMask), rmilter.OptProtocol(*disabledMsgs))
	if err != nil {
		log.Println(err)
		return
	}
	defer s.Close()

	act, err := s.Conn(*hostname, rmilter.ProtocolFamily((*family)[0]), uint16(*port), *connAddr)
	if err != nil {
		log.Println(err)
		return
	}
	log.Println("CONNECT:", act)
	if act != rmilter.ActionContinue {
		return
	}

	act, err = s.Helo(*helo)
	if err != nil {
		log.Println(err)
		return
	}
	log.Println("HELO:", act)
	if act != rmilter.ActionContinue {
		return
	}

	act, err = s.Mail(*mailFrom, nil)
	if err != nil {
		log.Println(err)
		return
	}
	log.Println("MAIL:", act)
	if act != rmilter.ActionContinue {
		return
	}

	for _, rcpt := range strings.Split(*rcptTo, ",") {
		act, err = s.Rcpt(rcpt, nil)
		if err != nil {
			log.Println(err)
			return
		}
		log.Println("RCPT:", act)
		if act != rmilter.ActionContinue {
			return
		}
	}

	bufR := bufio.NewReader(os.Stdin)
	hdr, err := textproto.ReadHeader(bufR)
	if err != nil {
		log.Println("header parse:", err)
		return
	}

	for f := hdr.Fields(); f.Next(); {
		act, err = s.HeaderField(f.Key(), f.Value())
		if err != nil {
			log.Println(err)
			return
		}
		log.Println("HEADER:", act)
		if act != rmilter.ActionContinue {
			return
		}
	}

	act, err = s.HeaderEnd()
	if err != nil {
		log.Println(err)
		return
	}
	log.Println("EOH:", act)
	if act != rmilter.ActionContinue {
		return
	}

	buf := make([]byte, maxBodyChunk)
	for {
		n, err := bufR.Read(buf)
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Println("stdin error:", err)
			return
		}
		if n == 0 {
			break
		}

		act, err = s.BodyChunk(buf[:n])
		if err != nil {
			log.Println(err)
			return
		}
		log.Println("BODY:", act)
		if act != rmilter.ActionContinue {
			return
		}
	}

	act, err = s.End()
	if err != nil {
		log.Println(err)
		return
	}
	log.Println("EOB:", act)
}
