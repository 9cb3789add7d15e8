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

var _ = Describe("Session", func() {
	var s *stream.Session

	BeforeEach(func() {
		s = stream.NewSession()
	})

	It("starts streaming and empty", func() {
		Expect(s.Streaming).To(BeTrue())
		Expect(s.Done()).To(BeFalse())
		Expect(s.ThinkingSteps).To(BeEmpty())
		Expect(s.Answer).To(BeEmpty())
	})

	Describe("thinking steps", func() {
		It("appends a running step", func() {
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "route", Status: rag.StepRunning, Message: "Đang định tuyến"})
			Expect(s.ThinkingSteps).To(HaveLen(1))
			Expect(s.ThinkingSteps[0].Status).To(Equal(rag.StepRunning))
		})

		It("replaces the running step in place when it finishes", func() {
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "route", Status: rag.StepRunning, Message: "Đang định tuyến"})
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "retrieve", Status: rag.StepRunning, Message: "Đang tìm tài liệu"})
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "route", Status: rag.StepDone, Message: "Định tuyến xong", ElapsedMs: 42})

			Expect(s.ThinkingSteps).To(HaveLen(2))
			Expect(s.ThinkingSteps[0].Step).To(Equal("route"))
			Expect(s.ThinkingSteps[0].Status).To(Equal(rag.StepDone))
			Expect(s.ThinkingSteps[0].ElapsedMs).To(Equal(int64(42)))
			Expect(s.ThinkingSteps[1].Step).To(Equal("retrieve"))
			Expect(s.ThinkingSteps[1].Status).To(Equal(rag.StepRunning))
		})

		It("appends an unmatched done step", func() {
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "rerank", Status: rag.StepDone, Message: "Sắp xếp lại xong", ElapsedMs: 7})
			Expect(s.ThinkingSteps).To(HaveLen(1))
			Expect(s.ThinkingSteps[0].Status).To(Equal(rag.StepDone))
		})

		It("keeps stage metadata from the done event", func() {
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "retrieve", Status: rag.StepRunning})
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "retrieve", Status: rag.StepDone, Data: map[string]any{"doc_count": float64(5)}})
			Expect(s.ThinkingSteps[0].Data).To(HaveKeyWithValue("doc_count", float64(5)))
		})
	})

	Describe("answer accumulation", func() {
		It("concatenates chunks in order", func() {
			s.Apply(rag.Event{Type: rag.EventAnswerStart})
			s.Apply(rag.Event{Type: rag.EventAnswerChunk, Content: "Tỷ suất "})
			s.Apply(rag.Event{Type: rag.EventAnswerChunk, Content: "lợi nhuận"})
			Expect(s.Answer).To(Equal("Tỷ suất lợi nhuận"))
		})

		It("treats answer_start as a signal only", func() {
			s.Apply(rag.Event{Type: rag.EventAnswerStart})
			Expect(s.Answer).To(BeEmpty())
			Expect(s.ThinkingSteps).To(BeEmpty())
			Expect(s.Done()).To(BeFalse())
		})
	})

	Describe("terminal events", func() {
		It("finalizes on complete with citations and total time", func() {
			s.Apply(rag.Event{Type: rag.EventAnswerChunk, Content: "xong"})
			s.Apply(rag.Event{
				Type:        rag.EventComplete,
				TotalTimeMs: 450,
				Citations:   []rag.Citation{{Number: 1, Source: "Thuật ngữ tài chính", Similarity: 0.94}},
			})
			Expect(s.Done()).To(BeTrue())
			Expect(s.Streaming).To(BeFalse())
			Expect(s.TotalTimeMs).To(Equal(int64(450)))
			Expect(s.Citations).To(HaveLen(1))
			Expect(s.Err).To(BeNil())
			Expect(s.Interrupted).To(BeFalse())
		})

		It("finalizes on error keeping partial state", func() {
			s.Apply(rag.Event{Type: rag.EventThinking, Step: "route", Status: rag.StepDone})
			s.Apply(rag.Event{Type: rag.EventAnswerChunk, Content: "một phần"})
			s.Apply(rag.Event{Type: rag.EventError, Message: "pipeline thất bại"})

			Expect(s.Done()).To(BeTrue())
			Expect(s.Answer).To(Equal("một phần"))
			Expect(s.ThinkingSteps).To(HaveLen(1))

			var upstream *stream.UpstreamError
			Expect(errors.As(s.Err, &upstream)).To(BeTrue())
			Expect(upstream.Message).To(Equal("pipeline thất bại"))
		})

		It("ignores events after a terminal event", func() {
			s.Apply(rag.Event{Type: rag.EventComplete, TotalTimeMs: 100})
			s.Apply(rag.Event{Type: rag.EventAnswerChunk, Content: "muộn"})
			s.Apply(rag.Event{Type: rag.EventError, Message: "muộn"})
			Expect(s.Answer).To(BeEmpty())
			Expect(s.Err).To(BeNil())
			Expect(s.TotalTimeMs).To(Equal(int64(100)))
		})

		It("skips unknown event types", func() {
			s.Apply(rag.Event{Type: "heartbeat"})
			Expect(s.Done()).To(BeFalse())
			Expect(s.ThinkingSteps).To(BeEmpty())
		})
	})

	Describe("Interrupt", func() {
		It("finalizes without an error", func() {
			s.Apply(rag.Event{Type: rag.EventAnswerChunk, Content: "gần xong"})
			s.Interrupt()
			Expect(s.Done()).To(BeTrue())
			Expect(s.Interrupted).To(BeTrue())
			Expect(s.Err).To(BeNil())
			Expect(s.Answer).To(Equal("gần xong"))
		})

		It("does nothing on a finished session", func() {
			s.Apply(rag.Event{Type: rag.EventComplete})
			s.Interrupt()
			Expect(s.Interrupted).To(BeFalse())
		})
	})

	Describe("decoding and folding a full stream", func() {
		It("produces the same final state for any chunking", func() {
			wire := `data: {"type":"thinking","step":"route","status":"running","message":"Đang định tuyến câu hỏi"}
data: {"type":"thinking","step":"route","status":"done","message":"Định tuyến xong","elapsed_ms":42,"data":{"routes":["finance"]}}
data: {"type":"thinking","step":"retrieve","status":"running","message":"Đang tìm tài liệu"}
data: {"type":"thinking","step":"retrieve","status":"done","message":"Đã tìm 5 tài liệu","elapsed_ms":118,"data":{"doc_count":5}}
data: {"type":"answer_start"}
data: {"type":"answer_chunk","content":"ROE (Return on Equity) là "}
data: {"type":"answer_chunk","content":"tỷ suất lợi nhuận trên vốn chủ sở hữu."}
data: {"type":"complete","total_time_ms":450,"citations":[{"number":1,"source":"Thuật ngữ tài chính","preview":"ROE đo lường...","similarity":0.94}]}
`
			fold := func(r io.Reader) *stream.Session {
				dec := stream.NewDecoder(r, nil)
				sess := stream.NewSession()
				for {
					ev, err := dec.Next()
					if err != nil {
						break
					}
					sess.Apply(ev)
				}
				return sess
			}

			want := fold(strings.NewReader(wire))
			Expect(want.Done()).To(BeTrue())
			Expect(want.Answer).To(Equal("ROE (Return on Equity) là tỷ suất lợi nhuận trên vốn chủ sở hữu."))
			Expect(want.ThinkingSteps).To(HaveLen(2))
			Expect(want.Citations).To(HaveLen(1))
			Expect(want.TotalTimeMs).To(Equal(int64(450)))

			for _, size := range []int{1, 2, 3, 7, 64, 4096} {
				got := fold(&chunkReader{data: []byte(wire), size: size})
				Expect(got).To(Equal(want), "chunk size %d", size)
			}
		})
	})
})
