// Package pubsub provides publish/subscribe over channels with two backends.
//
// NetworkedPubSub uses NATS core subjects. LocalPubSub talks to a
// broker.Server over WebSocket and can start that broker itself from Init.
// Both prefix channels with "{bucket}:" when a bucket is configured, encode
// payloads with a codec, and dispatch each received message to every
// callback of its channel in registration order.
//
// Listen blocks; run it on its own goroutine and stop it by cancelling its
// context or calling Stop:
//
//	ps, err := pubsub.NewLocal(broker.DefaultConfig(), pubsub.WithBucket("app"))
//	if err != nil {
//	    return err
//	}
//	if err := ps.Init(ctx); err != nil {
//	    return err
//	}
//	defer ps.Stop(ctx)
//
//	_ = ps.Subscribe(ctx, "alerts", func(ctx context.Context, msg *pubsub.Message) {
//	    var alert map[string]string
//	    if err := msg.Decode(&alert); err == nil {
//	        handle(alert)
//	    }
//	})
//	go ps.Listen(ctx)
//
//	_ = ps.Publish(ctx, "alerts", map[string]string{"level": "high"})
package pubsub
