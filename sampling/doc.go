// Package sampling emulates subscriptions with periodic batched reads.
//
// Items are grouped by their (sampling rate, max age) pair; each group is served
// by one Sampler that reads all of its nodes in a single request per tick and
// delivers one PeriodicData notification per destination queue. Failed reads are
// reported in-band as error-status notifications so a consumer sees the same
// stream shape whether values are good or not.
//
// Example:
//
//	sc, err := sampling.New(session, sampling.DefaultConfig(), sampling.WithLogger(logger))
//	reg, err := sc.Register("temperature", opcsub.ReadItem{NodeID: "ns=2;s=T"}, time.Second, 0, queue)
//	defer reg.Close()
package sampling
