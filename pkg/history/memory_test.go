package history_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/finlexvn/ragchat/pkg/history"
)

var _ = Describe("MemoryStore", func() {
	var (
		store *history.MemoryStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = history.NewMemoryStore()
	})

	It("assigns ids starting at 1", func() {
		id1, err := store.Put(ctx, &history.Turn{Query: "một", Answer: "a"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id1).To(Equal(int64(1)))

		id2, err := store.Put(ctx, &history.Turn{Query: "hai", Answer: "b"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id2).To(Equal(int64(2)))
	})

	It("returns copies the caller cannot mutate", func() {
		id, err := store.Put(ctx, &history.Turn{Query: "gốc", Answer: "a"})
		Expect(err).NotTo(HaveOccurred())

		got, err := store.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		got.Query = "đã sửa"

		again, err := store.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Query).To(Equal("gốc"))
	})

	It("lists newest first", func() {
		for _, q := range []string{"một", "hai", "ba"} {
			_, err := store.Put(ctx, &history.Turn{Query: q, Answer: "a"})
			Expect(err).NotTo(HaveOccurred())
		}
		turns, err := store.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(3))
		Expect(turns[0].Query).To(Equal("ba"))
	})

	It("returns ErrNotFound for a missing id", func() {
		_, err := store.Get(ctx, 42)
		var notFound history.ErrNotFound
		Expect(errors.As(err, &notFound)).To(BeTrue())
	})

	It("rejects a nil turn", func() {
		_, err := store.Put(ctx, nil)
		Expect(err).To(HaveOccurred())
	})
})
