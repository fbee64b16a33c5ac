package eventbus

import "fmt"

// Name implements the reporter interface.
func (b *Bus) Name() string {
	return "Event Bus"
}

// Report implements the reporter interface, tallying live runs/subscribers
// and total events published since the last reset.
func (b *Bus) Report(resetCounters bool) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := 0
	for _, runSubs := range b.subs {
		subscribers += len(runSubs)
	}
	report := fmt.Sprintf("runs=%d subscribers=%d published=%d", len(b.subs), subscribers, b.published)
	if resetCounters {
		b.published = 0
	}
	return report
}
