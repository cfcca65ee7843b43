// Package uaclient adapts a gopcua client to the opcsub session contract.
//
// The adapter owns no connection logic: dialing, security and reconnection stay
// with the *opcua.Client the caller supplies. It translates reads, subscriptions
// and monitored item sets between opcsub types and the OPC UA service model.
//
// Example:
//
//	c, _ := opcua.NewClient(endpoint, opcua.AutoReconnect(true))
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//	session := uaclient.New(c, uaclient.Config{}, uaclient.WithLogger(logger))
//	client, _ := opcsub.NewClient(&cfg, session)
package uaclient
