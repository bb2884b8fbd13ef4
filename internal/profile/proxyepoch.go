package profile

// ProxyEpochRecordFilter synthesizes epoch boundaries for applications
// that never call Context.Epoch directly, by counting entries into a
// configured "proxy" region and inserting a synthesized epoch record
// every callsPerEpoch entries, once the first startupCount entries
// (presumed warm-up / ramp, not yet periodic) have passed through
// unmodified. Grounded on the source's ProxyEpochRecordFilter: a
// region whose entry is known to recur once per outer loop iteration
// stands in for an explicit epoch marker.
type ProxyEpochRecordFilter struct {
	hash          RegionHash
	callsPerEpoch int
	startupCount  int

	entriesSeen   int
	epochsEmitted int
}

// NewProxyEpochRecordFilter creates a filter watching entries into
// hash. A callsPerEpoch below 1 is raised to 1 and a negative
// startupCount is treated as 0.
func NewProxyEpochRecordFilter(hash RegionHash, callsPerEpoch, startupCount int) *ProxyEpochRecordFilter {
	if callsPerEpoch < 1 {
		callsPerEpoch = 1
	}
	if startupCount < 0 {
		startupCount = 0
	}
	return &ProxyEpochRecordFilter{hash: hash, callsPerEpoch: callsPerEpoch, startupCount: startupCount}
}

// Filter observes one record of the application's stream. Records for
// any hash other than the configured proxy region pass through
// unchanged. For the proxy region's EventEnter records: the first
// startupCount entries pass through alone; every callsPerEpoch-th
// entry thereafter is followed by a synthesized EventEpoch record
// carrying the entry's Time. The record holds no epoch number; the
// running count, starting from 1, is available from EpochsEmitted.
func (f *ProxyEpochRecordFilter) Filter(record Record) []Record {
	if record.Hash != f.hash || record.Event != EventEnter {
		return []Record{record}
	}

	f.entriesSeen++
	if f.entriesSeen <= f.startupCount {
		return []Record{record}
	}

	postStartupCount := f.entriesSeen - f.startupCount
	if postStartupCount%f.callsPerEpoch != 0 {
		return []Record{record}
	}

	f.epochsEmitted++
	return []Record{record, {Event: EventEpoch, Hash: f.hash, Time: record.Time}}
}

// EpochsEmitted returns the number of synthesized epoch records
// produced so far.
func (f *ProxyEpochRecordFilter) EpochsEmitted() int { return f.epochsEmitted }
