package monitor

import "time"

const (
	defaultRefreshInterval = time.Second
	tracePaneMinLines      = 4
	tracePaneMaxLines      = 20
	listMinRows            = 3
)
