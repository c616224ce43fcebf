package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var defaultTimeServers = []string{
	"https://www.google.com",
	"https://www.cloudflare.com",
	"https://www.amazon.com",
}

// TimeSync estimates the host clock's skew from the Date header of a few
// well-known servers. It decides what "today" is for month navigation, so a
// skewed host clock around month boundaries does not open the wrong month.
type TimeSync struct {
	servers      []string
	client       *http.Client
	logger       *zap.Logger
	offset       time.Duration
	lastSyncTime time.Time
	synced       bool
}

// NewTimeSync creates a TimeSync against servers, or the default set when
// servers is empty.
func NewTimeSync(logger *zap.Logger, servers ...string) *TimeSync {
	if len(servers) == 0 {
		servers = defaultTimeServers
	}
	return &TimeSync{
		servers: servers,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

// Sync averages the offsets of every server that answered.
func (ts *TimeSync) Sync() error {
	var totalOffset time.Duration
	successCount := 0

	for _, server := range ts.servers {
		offset, err := ts.getTimeOffset(server)
		if err != nil {
			ts.logger.Debug("Time sync failed", zap.String("server", server), zap.Error(err))
			continue
		}

		totalOffset += offset
		successCount++
		ts.logger.Debug("Time offset measured", zap.String("server", server), zap.Duration("offset", offset))
	}

	if successCount == 0 {
		return fmt.Errorf("failed to sync time with any server")
	}

	ts.offset = totalOffset / time.Duration(successCount)
	ts.lastSyncTime = time.Now()
	ts.synced = true

	ts.logger.Info("Time synchronized", zap.Duration("offset", ts.offset), zap.Int("servers", successCount))
	return nil
}

func (ts *TimeSync) getTimeOffset(url string) (time.Duration, error) {
	beforeRequest := time.Now()

	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := ts.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	afterRequest := time.Now()

	dateHeader := resp.Header.Get("Date")
	if dateHeader == "" {
		return 0, fmt.Errorf("no Date header in response")
	}

	serverTime, err := http.ParseTime(dateHeader)
	if err != nil {
		return 0, fmt.Errorf("failed to parse Date header: %w", err)
	}

	// Half the round trip approximates when the server stamped the header.
	latency := afterRequest.Sub(beforeRequest) / 2
	localTime := beforeRequest.Add(latency)
	return serverTime.Sub(localTime), nil
}

// Now returns local time adjusted by the measured offset, or plain local
// time before the first successful Sync.
func (ts *TimeSync) Now() time.Time {
	if !ts.synced {
		return time.Now()
	}
	return time.Now().Add(ts.offset)
}

func (ts *TimeSync) GetOffset() time.Duration {
	return ts.offset
}

// ShouldResync reports whether the last sync is more than an hour old.
func (ts *TimeSync) ShouldResync() bool {
	if !ts.synced {
		return true
	}
	return time.Since(ts.lastSyncTime) > 1*time.Hour
}
