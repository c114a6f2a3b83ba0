package service

import "time"

// nowUTC is the service clock, truncated to the second precision of the
// DATETIME columns.
var nowUTC = func() time.Time { return time.Now().UTC().Truncate(time.Second) }
