package integrations

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-integrations/adapters/gocommand"
)

// BusSubscriptions tracks the dispatcher subscriptions created by Mount so
// hosts can detach the facade during shutdown.
type BusSubscriptions struct {
	subscriptions []commanddispatcher.Subscription
}

func (s *BusSubscriptions) Unsubscribe() {
	if s == nil {
		return
	}
	for _, subscription := range s.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	s.subscriptions = nil
}

// Mount registers every command and query handler on the bus and subscribes
// them to the go-command dispatcher, so hosts drive the service through
// typed messages instead of direct method calls. A nil bus gets a fresh
// registry.
func (f *Facade) Mount(bus *gocommand.Bus) (*BusSubscriptions, error) {
	if f == nil {
		return nil, fmt.Errorf("integrations: facade is required")
	}
	if bus == nil {
		bus = gocommand.NewBus(nil)
	}

	subs := &BusSubscriptions{}
	var mountErr error
	track := func(subscription commanddispatcher.Subscription, err error) {
		if err != nil && mountErr == nil {
			mountErr = err
		}
		if subscription != nil {
			subs.subscriptions = append(subs.subscriptions, subscription)
		}
	}

	track(gocommand.RegisterAndSubscribe(bus, f.commands.StartAuthorization))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.CompleteCallback))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.SaveConnection))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.DeleteConnection))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.AddGrant))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.RemoveGrant))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.RefreshConnection))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.ReportConnectionError))
	track(gocommand.RegisterAndSubscribe(bus, f.commands.ReportConnectionTested))

	track(gocommand.RegisterAndSubscribeQuery(bus, f.queries.GetIntegration))
	track(gocommand.RegisterAndSubscribeQuery(bus, f.queries.ListIntegrations))
	track(gocommand.RegisterAndSubscribeQuery(bus, f.queries.GetConnection))
	track(gocommand.RegisterAndSubscribeQuery(bus, f.queries.ListConnections))
	track(gocommand.RegisterAndSubscribeQuery(bus, f.queries.ResolveConnection))
	track(gocommand.RegisterAndSubscribeQuery(bus, f.queries.ListGrants))
	track(gocommand.RegisterAndSubscribeQuery(bus, f.queries.ValidAccessToken))

	if mountErr != nil {
		subs.Unsubscribe()
		return nil, mountErr
	}
	return subs, nil
}
