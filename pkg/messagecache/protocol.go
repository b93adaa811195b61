package messagecache

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// The patterns below classify the handful of message shapes the rest of
// the cache layer ever writes into a user's inbox: per-shot battle combat
// logs, the end-of-battle outcome line, and resource collection events.
// Anything else is treated as opaque player-to-player text and passed
// through unsummarized.
var (
	reDamageDealt = regexp.MustCompile(`^You hit .* with your (\S+) for (\d+) damage\. \((\d+)/(\d+) shots hit\)$`)
	reDamageTaken = regexp.MustCompile(`^You were hit by .* with (?:a|an|their) (\S+) for (\d+) damage\.$`)
	reOutcomeWin  = regexp.MustCompile(`^You defeated .*!$`)
	reOutcomeLose = regexp.MustCompile(`^You were defeated by .*\.$`)
	reCollection  = regexp.MustCompile(`^You salvaged (\d+) iron from (an? )?(asteroid|shipwreck|escape pod)\.$`)
)

// summaryTotals accumulates the parsed metrics of one summarization pass.
type summaryTotals struct {
	damageDealt   int64
	damageTaken   int64
	shotsFired    int64
	shotsHit      int64
	victories     int
	defeats       int
	ironCollected int64
	collections   int
}

func (t summaryTotals) empty() bool {
	return t.damageDealt == 0 && t.damageTaken == 0 && t.victories == 0 &&
		t.defeats == 0 && t.ironCollected == 0 && t.collections == 0
}

func (t summaryTotals) accuracyPercent() int {
	if t.shotsFired == 0 {
		return 0
	}
	return int((t.shotsHit * 100) / t.shotsFired)
}

func (t summaryTotals) render() string {
	return fmt.Sprintf(
		"Summary: dealt %d damage (%d%% accuracy over %d shots), took %d damage, "+
			"%d victories, %d defeats, collected %d iron across %d salvage runs.",
		t.damageDealt, t.accuracyPercent(), t.shotsFired, t.damageTaken,
		t.victories, t.defeats, t.ironCollected, t.collections,
	)
}

// classify attempts to match text against a known event pattern, folding
// any parsed metrics into totals. It reports whether text was recognized;
// unrecognized text is the caller's signal to re-emit it unsummarized.
func classify(text string, totals *summaryTotals) bool {
	if m := reDamageDealt.FindStringSubmatch(text); m != nil {
		dmg, _ := strconv.ParseInt(m[2], 10, 64)
		hits, _ := strconv.ParseInt(m[3], 10, 64)
		shots, _ := strconv.ParseInt(m[4], 10, 64)
		totals.damageDealt += dmg
		totals.shotsHit += hits
		totals.shotsFired += shots
		return true
	}
	if m := reDamageTaken.FindStringSubmatch(text); m != nil {
		dmg, _ := strconv.ParseInt(m[2], 10, 64)
		totals.damageTaken += dmg
		return true
	}
	if reOutcomeWin.MatchString(text) {
		totals.victories++
		return true
	}
	if reOutcomeLose.MatchString(text) {
		totals.defeats++
		return true
	}
	if m := reCollection.FindStringSubmatch(text); m != nil {
		iron, _ := strconv.ParseInt(m[1], 10, 64)
		totals.ironCollected += iron
		totals.collections++
		return true
	}
	return false
}

// SummarizeMessages folds every unread message of userID into a single
// aggregated summary, re-emitting anything it cannot classify and marking
// every processed message read. A second call finds only the messages the
// first call created (the summary and any re-emits), which are unread; it
// cannot classify the summary text, so it re-emits it unchanged and returns
// an empty string.
func (c *Cache) SummarizeMessages(ctx context.Context, userID int64) (string, error) {
	unread, err := c.GetUnreadMessages(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(unread) == 0 {
		return "", nil
	}

	var totals summaryTotals
	var unrecognized []string
	for _, m := range unread {
		if !classify(m.Text, &totals) {
			unrecognized = append(unrecognized, m.Text)
		}
	}

	// Mark the originals read before re-emitting anything, so a freshly
	// created re-emit (or the summary itself) is never swept up by the
	// same mark-as-read pass.
	if _, err := c.MarkAllMessagesAsRead(ctx, userID); err != nil {
		return "", err
	}

	for _, text := range unrecognized {
		if _, err := c.CreateMessage(ctx, userID, text); err != nil {
			return "", err
		}
	}

	if totals.empty() {
		return "", nil
	}

	summary := totals.render()
	if _, err := c.CreateMessage(ctx, userID, summary); err != nil {
		return "", err
	}
	return summary, nil
}
