// Package stubcmder runs the local stand-in backend.
package stubcmder

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finlexvn/ragchat/pkg/history"
	"github.com/finlexvn/ragchat/pkg/logger"
	"github.com/finlexvn/ragchat/stub"
)

const stubLongDesc string = `Run a local stand-in for the assistant backend.

It speaks the same streaming protocol with canned answers, so ask and
chat can be exercised offline:

  ragchat stub --listen :6080 &
  ragchat ask --base-url http://localhost:6080 --user dev "ROE là gì?"

Questions prefixed "fail:" stream thinking steps and then an error
event; "drop:" closes the connection before the terminal event.`

const stubShortDesc string = "Run a local stand-in backend"

type stubCommander struct {
	listenAddr string
	chunkDelay time.Duration
	dbPath     string
	debug      bool
}

func NewStubCmd() *cobra.Command {
	cmder := &stubCommander{}

	cmd := &cobra.Command{
		Use:   "stub",
		Short: stubShortDesc,
		Long:  stubLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.listenAddr, "listen", ":6080", "Address to listen on")
	cmd.Flags().DurationVar(&cmder.chunkDelay, "chunk-delay", 30*time.Millisecond, "Pause between answer chunks")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "SQLite file for served turns (default: in-memory)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *stubCommander) run(ctx context.Context) error {
	log := logger.New(c.debug)
	defer log.Sync()

	var store history.Store
	if c.dbPath != "" {
		var err error
		store, err = history.NewSQLiteStore(c.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	srv := stub.New(stub.Config{
		ListenAddr: c.listenAddr,
		ChunkDelay: c.chunkDelay,
	}, store, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	log.Info("stub backend listening", zap.String("addr", c.listenAddr))

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
