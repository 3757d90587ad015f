package recording

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ridetrace/pkg/model"
)

// Ext is the recording file extension.
const Ext = ".json"

const stampLayout = "20060102-150405"

// FileName builds the canonical file name for a session started at the
// given time, e.g. "drop_20260825-143051.json".
func FileName(rideType model.RideType, startedAt time.Time) string {
	return fmt.Sprintf("%s_%s%s", rideType, startedAt.Format(stampLayout), Ext)
}

// suffixedFileName appends a collision counter before the extension,
// e.g. "drop_20260825-143051_2.json".
func suffixedFileName(rideType model.RideType, startedAt time.Time, n int) string {
	return fmt.Sprintf("%s_%s_%d%s", rideType, startedAt.Format(stampLayout), n, Ext)
}

// ParseFileName extracts the ride type and start time from a recording
// file name. Collision suffixes are accepted and ignored; anything else
// is rejected so directory scans skip foreign files.
func ParseFileName(name string) (model.RideType, time.Time, error) {
	base := strings.TrimSuffix(name, Ext)
	if base == name {
		return "", time.Time{}, fmt.Errorf("recording name %q: missing %s extension", name, Ext)
	}

	parts := strings.Split(base, "_")
	if len(parts) < 2 || len(parts) > 3 {
		return "", time.Time{}, fmt.Errorf("recording name %q: want <ridetype>_<stamp>%s", name, Ext)
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return "", time.Time{}, fmt.Errorf("recording name %q: bad collision suffix", name)
		}
	}

	rideType, err := model.ParseRideType(parts[0])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("recording name %q: %w", name, err)
	}

	stamp, err := time.ParseInLocation(stampLayout, parts[1], time.Local)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("recording name %q: bad timestamp: %w", name, err)
	}
	return rideType, stamp, nil
}
