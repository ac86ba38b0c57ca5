package client

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shvgo/shvclient/internal/chanutil"
	"github.com/shvgo/shvclient/internal/logger"
	"github.com/shvgo/shvclient/pkg/rpc"
)

type notificationSink = chanutil.Unbounded[*rpc.Frame]

// subscriptions is the dispatch table for inbound signals:
// path -> signal -> subscription id -> notification sink.
//
// It is owned by the client loop; all access happens from the loop's
// goroutine, so no locking is needed.
type subscriptions struct {
	table map[string]map[string]map[uint64]*notificationSink
	count int
}

func newSubscriptions() *subscriptions {
	return &subscriptions{table: make(map[string]map[string]map[uint64]*notificationSink)}
}

// add registers a sink and reports whether this is the first subscription of
// the (path, signal) pair, i.e. whether a broker subscribe is due.
//
// Inserting an id that is already present is a programming bug: ids are
// allocated from a process-wide counter and must never collide.
func (s *subscriptions) add(path, signal string, id uint64, sink *notificationSink) bool {
	signals, ok := s.table[path]
	if !ok {
		signals = make(map[string]map[uint64]*notificationSink)
		s.table[path] = signals
	}
	sinks, ok := signals[signal]
	if !ok {
		sinks = make(map[uint64]*notificationSink)
		signals[signal] = sinks
	}

	if _, dup := sinks[id]; dup {
		panic(fmt.Sprintf("BUG: duplicate subscription id %d for path %q, signal %q", id, path, signal))
	}

	first := len(sinks) == 0
	sinks[id] = sink
	s.count++
	return first
}

// remove drops a sink and reports whether the (path, signal) pair is now
// empty, i.e. whether a broker unsubscribe is due.
//
// A missing entry is benign: on disconnect the whole table is cleared, and
// receivers closed afterwards still post their unsubscribe command.
func (s *subscriptions) remove(path, signal string, id uint64) bool {
	signals, ok := s.table[path]
	if !ok {
		s.logMissing(path, signal, id)
		return false
	}
	sinks, ok := signals[signal]
	if !ok {
		s.logMissing(path, signal, id)
		return false
	}
	sink, ok := sinks[id]
	if !ok {
		s.logMissing(path, signal, id)
		return false
	}

	sink.Close()
	delete(sinks, id)
	s.count--
	if len(sinks) > 0 {
		return false
	}
	delete(signals, signal)
	if len(signals) == 0 {
		delete(s.table, path)
	}
	return true
}

func (s *subscriptions) logMissing(path, signal string, id uint64) {
	logger.Debug("Remove of non-existing subscription",
		logger.KeyPath, path,
		logger.KeySignal, signal,
		logger.KeySubscriptionID, id)
}

// clear closes every sink and empties the table. Called on disconnect; the
// broker drops its subscription records too, so nothing is left to undo.
func (s *subscriptions) clear() {
	for _, signals := range s.table {
		for _, sinks := range signals {
			for _, sink := range sinks {
				sink.Close()
			}
		}
	}
	s.table = make(map[string]map[string]map[uint64]*notificationSink)
	s.count = 0
}

// size returns the number of registered sinks.
func (s *subscriptions) size() int {
	return s.count
}

// dispatch fans a signal frame out to every sink subscribed to the frame's
// signal name at the path or any of its ancestors on segment boundaries.
// It returns the number of sinks reached.
//
// Order is deterministic: subscribed paths lexicographically, subscription
// ids ascending within one (path, signal) bucket.
func (s *subscriptions) dispatch(frame *rpc.Frame) int {
	path := frame.ShvPath()
	signal := frame.Method()

	paths := make([]string, 0, len(s.table))
	for subscribedPath := range s.table {
		paths = append(paths, subscribedPath)
	}
	sort.Strings(paths)

	reached := 0
	for _, subscribedPath := range paths {
		if !pathMatchesSubscription(path, subscribedPath) {
			continue
		}
		sinks := s.table[subscribedPath][signal]
		if len(sinks) == 0 {
			continue
		}

		ids := make([]uint64, 0, len(sinks))
		for id := range sinks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			if err := sinks[id].Send(frame); err != nil {
				// The receiver's unsubscribe command is already in flight;
				// the entry goes away when it arrives.
				logger.Warn("Notification sink closed while subscription still active",
					logger.KeyPath, subscribedPath,
					logger.KeySignal, signal,
					logger.KeySubscriptionID, id)
				continue
			}
			reached++
		}
	}
	return reached
}

// pathMatchesSubscription reports whether a signal path falls at or under a
// subscribed path. The boundary must be a whole segment: "a/bc" does not
// match the subscription "a/b".
func pathMatchesSubscription(path, subscribedPath string) bool {
	if !strings.HasPrefix(path, subscribedPath) {
		return false
	}
	rest := path[len(subscribedPath):]
	return rest == "" || strings.HasPrefix(rest, "/")
}
