package cmd

import (
	"fmt"
	"time"

	"github.com/grovetools/marksync/cli"
	"github.com/grovetools/marksync/config"
	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/snapshot"
	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/internal/transmit"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/grovetools/marksync/pkg/bookmarks/chrome"
	"github.com/grovetools/marksync/pkg/bookmarks/firefox"
	"github.com/grovetools/marksync/pkg/daemon"
	"github.com/grovetools/marksync/pkg/syncstate"
	"github.com/spf13/cobra"
)

// app holds what every command derives from the settings file.
type app struct {
	settings *config.Settings
	records  *syncstate.FileStore
}

func loadApp(cmd *cobra.Command) (*app, error) {
	settings, err := cli.LoadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return &app{
		settings: settings,
		records:  syncstate.NewFileStore(settings.State.Path),
	}, nil
}

// source opens the configured bookmark tree. The "none" kind is an empty
// tree that never changes.
func (a *app) source() (bookmarks.Source, error) {
	s := a.settings.Source
	switch s.Kind {
	case config.SourceChrome:
		return chrome.New(s.Path, s.PollInterval.Duration)
	case config.SourceFirefox:
		return firefox.New(s.Path, s.PollInterval.Duration)
	case config.SourceNone:
		return bookmarks.NewMemoryTree(time.Now), nil
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown source kind %q", s.Kind))
	}
}

func (a *app) transmitter() *transmit.Transmitter {
	opts := []transmit.Option{transmit.WithUserAgent(a.settings.Transport.UserAgent)}
	if d := a.settings.Transport.Timeout.Duration; d > 0 {
		opts = append(opts, transmit.WithTimeout(d))
	}
	return transmit.New(opts...)
}

func (a *app) syncer(tree bookmarks.Tree) *syncer.Syncer {
	return syncer.New(a.records, snapshot.NewBuilder(tree), a.transmitter())
}

// localClient is the fallback used when no daemon is reachable.
func (a *app) localClient() (*daemon.LocalClient, error) {
	src, err := a.source()
	if err != nil {
		return nil, err
	}
	return daemon.NewLocalClient(a.syncer(src)), nil
}
