package history_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/finlexvn/ragchat/pkg/history"
	"github.com/finlexvn/ragchat/pkg/rag"
)

var _ = Describe("SQLiteStore", func() {
	var (
		store *history.SQLiteStore
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = history.NewSQLiteStore(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("NewSQLiteStore", func() {
		It("creates a store with a file database", func() {
			tmpDir := GinkgoT().TempDir()
			dbPath := filepath.Join(tmpDir, "history.db")

			s, err := history.NewSQLiteStore(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a turn with citations", func() {
			turn := &history.Turn{
				Query:  "ROE là gì?",
				Answer: "Tỷ suất lợi nhuận trên vốn chủ sở hữu.",
				Citations: []rag.Citation{
					{Number: 1, Source: "Thuật ngữ tài chính", Preview: "ROE đo lường...", Similarity: 0.94},
				},
				TotalTimeMs: 450,
			}

			id, err := store.Put(ctx, turn)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			got, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Query).To(Equal(turn.Query))
			Expect(got.Answer).To(Equal(turn.Answer))
			Expect(got.Citations).To(Equal(turn.Citations))
			Expect(got.TotalTimeMs).To(Equal(int64(450)))
			Expect(got.Interrupted).To(BeFalse())
			Expect(got.CreatedAt).NotTo(BeZero())
		})

		It("preserves the interrupted flag", func() {
			id, err := store.Put(ctx, &history.Turn{Query: "q", Answer: "một phần", Interrupted: true})
			Expect(err).NotTo(HaveOccurred())

			got, err := store.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Interrupted).To(BeTrue())
			Expect(got.Citations).To(BeEmpty())
		})

		It("rejects a nil turn", func() {
			_, err := store.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
		})

		It("returns ErrNotFound for a missing id", func() {
			_, err := store.Get(ctx, 9999)
			var notFound history.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.ID).To(Equal(int64(9999)))
		})
	})

	Describe("List", func() {
		It("returns turns newest first", func() {
			for _, q := range []string{"một", "hai", "ba"} {
				_, err := store.Put(ctx, &history.Turn{Query: q, Answer: "a"})
				Expect(err).NotTo(HaveOccurred())
			}

			turns, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(3))
			Expect(turns[0].Query).To(Equal("ba"))
			Expect(turns[2].Query).To(Equal("một"))
		})

		It("returns an empty slice when nothing is stored", func() {
			turns, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})
	})
})
