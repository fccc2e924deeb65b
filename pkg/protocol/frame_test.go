package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NicolasHaas/chatd/pkg/protocol"
)

var _ = Describe("Framing", func() {
	Describe("FieldCount()", func() {
		It("knows the field count of every session flag", func() {
			expected := map[protocol.Flag]int{
				protocol.PrivateClient: 3,
				protocol.PrivateServer: 1,
				protocol.GlobalClient:  2,
				protocol.GlobalServer:  1,
				protocol.Disconnect:    1,
				protocol.Kick:          1,
				protocol.Ban:           1,
				protocol.Delete:        1,
				protocol.Kicked:        1,
				protocol.Banned:        1,
				protocol.Deleted:       1,
			}
			for flag, want := range expected {
				n, ok := protocol.FieldCount(flag)
				Expect(ok).To(BeTrue(), flag.String())
				Expect(n).To(Equal(want), flag.String())
			}
		})

		It("rejects flags outside the vocabulary", func() {
			_, ok := protocol.FieldCount(protocol.Flag(99))
			Expect(ok).To(BeFalse())
		})

		It("uses the fixed numeric values", func() {
			Expect(byte(protocol.PrivateClient)).To(Equal(byte(43)))
			Expect(byte(protocol.Deleted)).To(Equal(byte(53)))
			Expect(byte(protocol.LoginAccepted)).To(Equal(byte(35)))
			Expect(byte(protocol.RegistrationSucceeded)).To(Equal(byte(42)))
		})
	})

	Describe("WriteFrame()", func() {
		It("writes the flag byte followed by one line per field", func() {
			var buf bytes.Buffer
			Expect(protocol.WriteFrame(&buf, protocol.PrivateClient, "alice", "bob", "hi there")).To(Succeed())
			Expect(buf.Bytes()).To(Equal(append([]byte{43}, []byte("alice\nbob\nhi there\n")...)))
		})

		It("rejects a wrong field count", func() {
			var buf bytes.Buffer
			err := protocol.WriteFrame(&buf, protocol.GlobalClient, "alice")
			Expect(errors.Is(err, protocol.ErrFieldCount)).To(BeTrue())
			Expect(buf.Len()).To(BeZero())
		})

		It("rejects fields with embedded line breaks", func() {
			var buf bytes.Buffer
			err := protocol.WriteFrame(&buf, protocol.GlobalServer, "one\ntwo")
			Expect(err).To(MatchError(ContainSubstring("line break")))
			Expect(buf.Len()).To(BeZero())
		})

		It("rejects unknown flags", func() {
			var buf bytes.Buffer
			err := protocol.WriteFrame(&buf, protocol.Flag(7))
			Expect(errors.Is(err, protocol.ErrUnknownFlag)).To(BeTrue())
		})
	})

	Describe("ReadFrame()", func() {
		It("round trips every flag", func() {
			var buf bytes.Buffer
			Expect(protocol.WriteFrame(&buf, protocol.Kicked, "mod")).To(Succeed())
			Expect(protocol.WriteFrame(&buf, protocol.GlobalClient, "alice", "hello")).To(Succeed())

			r := protocol.NewReader(&buf)
			f, err := r.ReadFrame()
			Expect(err).To(Succeed())
			Expect(f.Flag).To(Equal(protocol.Kicked))
			Expect(f.Flag.IsTerminal()).To(BeTrue())
			Expect(f.Field(0)).To(Equal("mod"))

			f, err = r.ReadFrame()
			Expect(err).To(Succeed())
			Expect(f.Fields).To(Equal([]string{"alice", "hello"}))

			_, err = r.ReadFrame()
			Expect(err).To(MatchError(io.EOF))
		})

		It("reports unknown flags without consuming the following line", func() {
			r := protocol.NewReader(bytes.NewReader(append([]byte{99}, append([]byte{46}, []byte("still here\n")...)...)))
			f, err := r.ReadFrame()
			Expect(errors.Is(err, protocol.ErrUnknownFlag)).To(BeTrue())
			Expect(f.Flag).To(Equal(protocol.Flag(99)))

			f, err = r.ReadFrame()
			Expect(err).To(Succeed())
			Expect(f.Flag).To(Equal(protocol.GlobalServer))
			Expect(f.Field(0)).To(Equal("still here"))
		})

		It("fails when the stream ends mid-frame", func() {
			r := protocol.NewReader(bytes.NewReader(append([]byte{43}, []byte("alice\n")...)))
			_, err := r.ReadFrame()
			Expect(errors.Is(err, io.EOF)).To(BeTrue())
		})
	})

	Describe("ReadLine()", func() {
		It("strips LF and CRLF terminators", func() {
			r := protocol.NewReader(strings.NewReader("one\r\ntwo\nthree"))
			for _, want := range []string{"one", "two", "three"} {
				line, err := r.ReadLine()
				Expect(err).To(Succeed())
				Expect(line).To(Equal(want))
			}
			_, err := r.ReadLine()
			Expect(err).To(MatchError(io.EOF))
		})

		It("returns empty lines", func() {
			r := protocol.NewReader(strings.NewReader("\n"))
			line, err := r.ReadLine()
			Expect(err).To(Succeed())
			Expect(line).To(BeEmpty())
		})

		It("rejects lines over the limit and resynchronizes on the next line", func() {
			r := protocol.NewReader(strings.NewReader(strings.Repeat("x", 3*protocol.MaxLineLength) + "\nnext\n"))
			_, err := r.ReadLine()
			Expect(err).To(MatchError(protocol.ErrLineTooLong))

			line, err := r.ReadLine()
			Expect(err).To(Succeed())
			Expect(line).To(Equal("next"))
		})

		It("rejects a line one byte over the limit whatever its terminator", func() {
			over := strings.Repeat("x", protocol.MaxLineLength+1)
			r := protocol.NewReader(strings.NewReader(over + "\n" + over + "\r\nnext\n"))
			_, err := r.ReadLine()
			Expect(err).To(MatchError(protocol.ErrLineTooLong))
			_, err = r.ReadLine()
			Expect(err).To(MatchError(protocol.ErrLineTooLong))

			line, err := r.ReadLine()
			Expect(err).To(Succeed())
			Expect(line).To(Equal("next"))
		})

		It("accepts a line at the limit", func() {
			long := strings.Repeat("x", protocol.MaxLineLength)
			r := protocol.NewReader(strings.NewReader(long + "\r\n"))
			line, err := r.ReadLine()
			Expect(err).To(Succeed())
			Expect(line).To(Equal(long))
		})
	})

	Describe("handshake bytes", func() {
		It("parses known requests and rejects others", func() {
			req, err := protocol.ParseRequest(3)
			Expect(err).To(Succeed())
			Expect(req).To(Equal(protocol.LoginRequest))

			_, err = protocol.ParseRequest(9)
			Expect(errors.Is(err, protocol.ErrUnknownRequest)).To(BeTrue())
		})

		It("writes and reads status bytes", func() {
			var buf bytes.Buffer
			Expect(protocol.WriteStatus(&buf, protocol.LoginBanned)).To(Succeed())
			s, err := protocol.NewReader(&buf).ReadStatus()
			Expect(err).To(Succeed())
			Expect(s).To(Equal(protocol.LoginBanned))
			Expect(s.String()).To(Equal("banned"))
		})

		It("refuses credential lines containing line breaks", func() {
			var buf bytes.Buffer
			Expect(protocol.WriteLine(&buf, "pass\nword")).To(MatchError(protocol.ErrInvalidField))
		})
	})

	Describe("Sanitize()", func() {
		It("flattens line breaks into spaces", func() {
			Expect(protocol.Sanitize("a\r\nb\nc")).To(Equal("a  b c"))
		})
	})
})
