// Command busfuzz replays scripted multicast scenarios against an
// in-process Bus, soak-testing Stage/CommitStaged ordering under both a
// sequential and a concurrent send pattern across a set of local peers.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jabolina/go-bus/pkg/bus"
	"github.com/jabolina/go-bus/pkg/bus/definition"
	"github.com/jabolina/go-bus/pkg/bus/types"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var alphabet = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
}

var (
	app = kingpin.New("busfuzz", "Replay scripted multicast scenarios against an in-process bus.")

	scenario = app.Flag("scenario", "scenario to run: sequential or concurrent").
			Default("sequential").Enum("sequential", "concurrent")

	peerCount = app.Flag("peers", "number of destination peers in the scenario").
			Default("3").Int()

	timeout = app.Flag("timeout", "overall scenario timeout").
		Default("30s").Duration()

	debug = app.Flag("debug", "enable debug logging").Default("false").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := definition.NewDefaultLogger("busfuzz")
	log.ToggleDebug(*debug)

	b := bus.New(log)
	defer b.Shutdown()

	names := make([]string, *peerCount)
	for i := range names {
		names[i] = fmt.Sprintf("peer-%d", i)
	}

	for _, name := range names {
		if _, err := b.NodeCreate(types.PeerConfiguration{Name: name, Namespace: "busfuzz"}); err != nil {
			fatalf("create peer %s: %v", name, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *scenario {
	case "sequential":
		runSequential(ctx, b, names)
	case "concurrent":
		runConcurrent(ctx, b, names)
	}

	report(b, names)
}

// runSequential sends one letter at a time from the first peer, waiting
// for it to be received everywhere before the next is issued.
func runSequential(ctx context.Context, b *bus.Bus, names []string) {
	for _, letter := range alphabet {
		content := types.Content{Operation: types.Command, Key: []byte("alphabet"), Value: []byte(letter)}
		if err := b.Send(ctx, names[0], content, names[1:]...); err != nil {
			fatalf("send %s: %v", letter, err)
		}
		drainOne(ctx, b, names)
	}
}

// runConcurrent fires every letter at once from the first peer, racing
// the staging phase across destinations.
func runConcurrent(ctx context.Context, b *bus.Bus, names []string) {
	var wg sync.WaitGroup
	for _, letter := range alphabet {
		wg.Add(1)
		go func(letter string) {
			defer wg.Done()
			content := types.Content{Operation: types.Command, Key: []byte("alphabet"), Value: []byte(letter)}
			if err := b.Send(ctx, names[0], content, names[1:]...); err != nil {
				fmt.Fprintf(os.Stderr, "send %s: %v\n", letter, err)
			}
		}(letter)
	}
	wg.Wait()

	for range alphabet {
		drainOne(ctx, b, names)
	}
}

// drainOne receives exactly one entry from every destination peer, so the
// queues don't pile up past what Disconnect's Flush would need to walk.
func drainOne(ctx context.Context, b *bus.Bus, names []string) {
	for _, name := range names {
		if _, err := b.Recv(ctx, name); err != nil {
			fmt.Fprintf(os.Stderr, "recv from %s: %v\n", name, err)
		}
	}
}

// report prints each peer's delivered history, so two runs of the same
// scenario can be diffed for divergence.
func report(b *bus.Bus, names []string) {
	for _, name := range names {
		p, ok := b.Lookup(name)
		if !ok {
			continue
		}
		for _, entry := range p.FastRead() {
			fmt.Printf("%s sender=%s ts=%d value=%s\n", name, entry.Sender, entry.Timestamp, entry.Content.Value)
		}
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
