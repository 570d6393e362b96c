// Package mqtt provides MQTT client connectivity for the voice bridge.
//
// The broker carries three kinds of traffic:
//
//	directives      command/<clientId>/alexa       (inbound)
//	responses       response/<clientId>/alexa      (outbound)
//	change reports  response/<clientId>/stateChange (outbound)
//
// and, through the homegraph package, the state graph itself under a
// configurable prefix (<prefix>/state/<id>, <prefix>/set/<id>, <prefix>/object/<id>).
//
// # Features
//
//   - Auto-reconnect with subscription restoration
//   - Last Will and Testament on voicebridge/<clientId>/status
//   - Panic recovery around every message handler
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.Instance.ID, cfg.HomeGraph.TopicPrefix)
//	err = client.Subscribe(topics.Directive(), 1, handleDirective)
package mqtt
