package stream_test

import (
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/finlexvn/ragchat/pkg/rag"
	"github.com/finlexvn/ragchat/pkg/stream"
)

// chunkReader yields the underlying bytes in fixed-size reads so specs
// can place chunk boundaries anywhere, including inside a multi-byte
// rune or a JSON object.
type chunkReader struct {
	data []byte
	size int
	off  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data)-r.off {
		n = len(r.data) - r.off
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[r.off:r.off+n])
	r.off += n
	return n, nil
}

func drain(r io.Reader) []rag.Event {
	dec := stream.NewDecoder(r, nil)
	var events []rag.Event
	for {
		ev, err := dec.Next()
		if err != nil {
			Expect(err).To(MatchError(io.EOF))
			return events
		}
		events = append(events, ev)
	}
}

var _ = Describe("Decoder", func() {
	It("parses a sequence of data lines in order", func() {
		wire := `data: {"type":"thinking","step":"route","status":"running","message":"Đang định tuyến"}
data: {"type":"thinking","step":"route","status":"done","message":"Định tuyến xong","elapsed_ms":42}
data: {"type":"answer_start"}
data: {"type":"answer_chunk","content":"ROE là "}
data: {"type":"complete","total_time_ms":450}
`
		events := drain(strings.NewReader(wire))
		Expect(events).To(HaveLen(5))
		Expect(events[0].Type).To(Equal(rag.EventThinking))
		Expect(events[0].Status).To(Equal(rag.StepRunning))
		Expect(events[1].ElapsedMs).To(Equal(int64(42)))
		Expect(events[2].Type).To(Equal(rag.EventAnswerStart))
		Expect(events[3].Content).To(Equal("ROE là "))
		Expect(events[4].Type).To(Equal(rag.EventComplete))
		Expect(events[4].TotalTimeMs).To(Equal(int64(450)))
	})

	It("ignores blank keep-alive lines", func() {
		wire := "\n\ndata: {\"type\":\"answer_chunk\",\"content\":\"a\"}\n\ndata: {\"type\":\"complete\"}\n\n"
		events := drain(strings.NewReader(wire))
		Expect(events).To(HaveLen(2))
	})

	It("ignores lines without the data prefix", func() {
		wire := "event: noise\n: comment\ndata: {\"type\":\"complete\"}\n"
		events := drain(strings.NewReader(wire))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal(rag.EventComplete))
	})

	It("requires the space after the colon", func() {
		wire := "data:{\"type\":\"answer_chunk\",\"content\":\"x\"}\ndata: {\"type\":\"complete\"}\n"
		events := drain(strings.NewReader(wire))
		Expect(events).To(HaveLen(1))
	})

	It("skips a malformed line and keeps decoding", func() {
		wire := "data: {\"type\":\"answer_chunk\",\"content\":\"a\"}\n" +
			"data: {not json}\n" +
			"data: {\"type\":\"answer_chunk\",\"content\":\"b\"}\n" +
			"data: {\"type\":\"complete\"}\n"
		events := drain(strings.NewReader(wire))
		Expect(events).To(HaveLen(3))
		Expect(events[0].Content).To(Equal("a"))
		Expect(events[1].Content).To(Equal("b"))
	})

	It("tolerates CRLF line endings", func() {
		wire := "data: {\"type\":\"answer_chunk\",\"content\":\"a\"}\r\ndata: {\"type\":\"complete\"}\r\n"
		events := drain(strings.NewReader(wire))
		Expect(events).To(HaveLen(2))
		Expect(events[0].Content).To(Equal("a"))
	})

	It("recovers a trailing terminal event without a newline", func() {
		wire := "data: {\"type\":\"answer_chunk\",\"content\":\"xong\"}\n" +
			"data: {\"type\":\"complete\",\"total_time_ms\":120}"
		events := drain(strings.NewReader(wire))
		Expect(events).To(HaveLen(2))
		Expect(events[1].Type).To(Equal(rag.EventComplete))
		Expect(events[1].TotalTimeMs).To(Equal(int64(120)))
	})

	It("returns EOF forever after the stream is exhausted", func() {
		dec := stream.NewDecoder(strings.NewReader("data: {\"type\":\"complete\"}\n"), nil)
		_, err := dec.Next()
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 3; i++ {
			_, err = dec.Next()
			Expect(errors.Is(err, io.EOF)).To(BeTrue())
		}
	})

	It("yields identical events for every chunking of the same bytes", func() {
		wire := "data: {\"type\":\"thinking\",\"step\":\"retrieve\",\"status\":\"done\",\"message\":\"Đã tìm tài liệu\",\"elapsed_ms\":118}\n" +
			"data: {\"type\":\"answer_chunk\",\"content\":\"Tỷ suất lợi nhuận trên vốn chủ sở hữu\"}\n" +
			"data: {\"type\":\"complete\",\"total_time_ms\":450}\n"

		want := drain(strings.NewReader(wire))
		Expect(want).To(HaveLen(3))

		// size 1 forces boundaries inside every multi-byte rune and
		// every JSON object.
		for size := 1; size <= len(wire); size++ {
			got := drain(&chunkReader{data: []byte(wire), size: size})
			Expect(got).To(Equal(want), "chunk size %d", size)
		}
	})

	It("reassembles an answer split inside a Vietnamese rune", func() {
		wire := "data: {\"type\":\"answer_chunk\",\"content\":\"Điều kiện phát hành\"}\ndata: {\"type\":\"complete\"}\n"
		events := drain(&chunkReader{data: []byte(wire), size: 3})
		Expect(events).To(HaveLen(2))
		Expect(events[0].Content).To(Equal("Điều kiện phát hành"))
	})
})
