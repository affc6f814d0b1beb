package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSelection_Answer(t *testing.T) {
	var out bytes.Buffer
	got := readSelection(context.Background(), strings.NewReader("  Tech,Sports \n"), &out, time.Second)
	assert.Equal(t, "Tech,Sports", got)
	assert.Contains(t, out.String(), "leave empty for All")
}

func TestReadSelection_Timeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	var out bytes.Buffer
	got := readSelection(context.Background(), r, &out, 10*time.Millisecond)
	assert.Equal(t, "", got)
	assert.Contains(t, out.String(), "generating all categories")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"run", "serve", "schedule", "categories", "images", "breaking", "sitemap"} {
		c, _, err := root.Find([]string{name})
		assert.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

func TestServeAlongside_ServerFailureStopsWork(t *testing.T) {
	bind := errors.New("listen tcp :8080: bind: address already in use")

	done := make(chan error, 1)
	go func() {
		done <- serveAlongside(context.Background(),
			func(ctx context.Context) error {
				<-ctx.Done()
				return nil
			},
			func(context.Context) error { return bind },
		)
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, bind)
	case <-time.After(5 * time.Second):
		t.Fatal("work kept running after the server failed")
	}
}

func TestServeAlongside_WorkDoneStopsServer(t *testing.T) {
	workErr := errors.New("invalid cron expression")
	var served bool

	err := serveAlongside(context.Background(),
		func(context.Context) error { return workErr },
		func(ctx context.Context) error {
			<-ctx.Done()
			served = true
			return nil
		},
	)
	assert.ErrorIs(t, err, workErr)
	assert.True(t, served)
}
