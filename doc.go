// Package opcsub provides virtual OPC UA subscriptions for Go.
//
// OPC UA servers cap the number of monitored items per subscription. opcsub lets
// any number of independent consumers register interest in nodes and events
// without each one owning a protocol subscription: registrations that share
// subscription options are grouped into one virtual subscription, whose items
// are bin-packed onto as few physical subscriptions as the server limit allows.
// Every inbound notification is routed back to the registration that asked for it.
//
// # Quick Start
//
//	import (
//	    "github.com/arloliu/opcsub"
//	    "github.com/arloliu/opcsub/source"
//	    "github.com/arloliu/opcsub/uaclient"
//	)
//
//	cfg := opcsub.DefaultConfig()
//	client, err := opcsub.NewClient(&cfg, uaclient.New(uaClient, uaclient.Config{}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	sub := opcsub.NewSubscriber(client)
//	reader, err := sub.Subscribe(ctx, source.NewStatic(opcsub.SubscriptionConfig{
//	    Options: &opcsub.SubscriptionOptions{PublishingInterval: time.Second},
//	    Items: map[string]opcsub.MonitoredItemOptions{
//	        "temperature": {NodeID: "ns=2;s=Temperature"},
//	    },
//	}))
//	for n := range reader.All(ctx) {
//	    fmt.Println(n.Kind, n.Items)
//	}
//
// # Key Features
//
//   - Virtual subscriptions: unlimited registrations per session
//   - Bag packing: a registration's items stay on one physical subscription unless
//     they alone exceed the server limit
//   - Debounced background resync with isolated failures and retries
//   - Sampling client: periodic batched reads with the same notification shape
//     (see the sampling package)
//
// # Architecture
//
// Sync cycles run on the client's goroutine:
//
//	trigger → debounce → snapshot/group → remove → add → update → Idle
//
// Physical subscriptions deliver keep-alives, data changes and events to their
// virtual subscription, which groups them per destination queue.
//
// See the examples/ directory for a complete program.
package opcsub
