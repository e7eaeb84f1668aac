package store

import (
	"context"
	"fmt"
)

// AddressCount counts scanned addresses, optionally limited to an owner
// set.
func (s *TicketStore) AddressCount(ctx context.Context, owners []string) (int, error) {
	bindVars := map[string]interface{}{}
	query := "FOR h IN hosts"
	if owners != nil {
		query += "\n\tFILTER h.owner IN @owners"
		bindVars["owners"] = owners
	}
	query += "\n\tCOLLECT WITH COUNT INTO total\n\tRETURN total"

	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return 0, fmt.Errorf("address count: %w", err)
	}
	defer cursor.Close()

	n, _, err := readOne[int](ctx, cursor)
	return n, err
}

// UpHostCount counts hosts currently responding, optionally limited to an
// owner set.
func (s *TicketStore) UpHostCount(ctx context.Context, owners []string) (int, error) {
	bindVars := map[string]interface{}{}
	query := "FOR h IN hosts\n\tFILTER h.state.up == true"
	if owners != nil {
		query += "\n\tFILTER h.owner IN @owners"
		bindVars["owners"] = owners
	}
	query += "\n\tCOLLECT WITH COUNT INTO total\n\tRETURN total"

	cursor, err := s.query(ctx, query, bindVars)
	if err != nil {
		return 0, fmt.Errorf("up host count: %w", err)
	}
	defer cursor.Close()

	n, _, err := readOne[int](ctx, cursor)
	return n, err
}

// HostnamesByIPInt resolves hostnames for the given host identities from
// the host records. Hosts without a hostname are absent from the map.
func (s *TicketStore) HostnamesByIPInt(ctx context.Context, ipInts []int64) (map[string]string, error) {
	query := `
		FOR h IN hosts
			FILTER h.ip_int IN @ipInts AND h.hostname != null
			RETURN { ip: h.ip, hostname: h.hostname }
	`
	cursor, err := s.query(ctx, query, map[string]interface{}{"ipInts": ipInts})
	if err != nil {
		return nil, fmt.Errorf("hostnames: %w", err)
	}
	defer cursor.Close()

	out := map[string]string{}
	for cursor.HasMore() {
		var doc struct {
			IP       string `json:"ip"`
			Hostname string `json:"hostname"`
		}
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, err
		}
		out[doc.IP] = doc.Hostname
	}
	return out, nil
}

// QueueCounts aggregates the scanner work-queue tallies across all
// organizations. Waiting folds in the ready state, matching how the
// dashboard presents queue depth.
type QueueCounts struct {
	NetscanWaiting  int `json:"ns_waiting"`
	NetscanRunning  int `json:"ns_running"`
	PortscanWaiting int `json:"ps_waiting"`
	PortscanRunning int `json:"ps_running"`
	VulnscanWaiting int `json:"vs_waiting"`
	VulnscanRunning int `json:"vs_running"`
}

// ScannerQueueCounts sums per-org tallies into one queue-depth vector.
func (s *TicketStore) ScannerQueueCounts(ctx context.Context) (QueueCounts, error) {
	query := `
		FOR tal IN tallies
			COLLECT AGGREGATE
				nsWaiting = SUM(tal.counts.NETSCAN.WAITING + tal.counts.NETSCAN.READY),
				nsRunning = SUM(tal.counts.NETSCAN.RUNNING),
				psWaiting = SUM(tal.counts.PORTSCAN.WAITING + tal.counts.PORTSCAN.READY),
				psRunning = SUM(tal.counts.PORTSCAN.RUNNING),
				vsWaiting = SUM(tal.counts.VULNSCAN.WAITING + tal.counts.VULNSCAN.READY),
				vsRunning = SUM(tal.counts.VULNSCAN.RUNNING)
			RETURN {
				ns_waiting: nsWaiting, ns_running: nsRunning,
				ps_waiting: psWaiting, ps_running: psRunning,
				vs_waiting: vsWaiting, vs_running: vsRunning
			}
	`
	cursor, err := s.query(ctx, query, nil)
	if err != nil {
		return QueueCounts{}, fmt.Errorf("queue counts: %w", err)
	}
	defer cursor.Close()

	counts, _, err := readOne[QueueCounts](ctx, cursor)
	return counts, err
}
