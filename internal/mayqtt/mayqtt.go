// Copyright 2016 Michael Stapelberg and contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mayqtt implements a best-effort MQTT client which publishes the
// daemon's status to f5stego/status. Without a configured broker, or while
// the broker is unreachable, status messages are dropped.
package mayqtt

import (
	"fmt"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/net/trace"
)

// StatusTopic receives retained status messages.
const StatusTopic = "f5stego/status"

type PublishRequest struct {
	Topic    string
	Qos      byte
	Retained bool
	Payload  interface{}
}

func mqttLoop(broker, clientID string, requests <-chan PublishRequest) error {
	tr := trace.New("MQTT", "Loop")
	defer tr.Finish()

	tr.LazyPrintf("Connecting to MQTT broker %s", broker)
	opts := mqtt.NewClientOptions().AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetConnectRetry(true)
	opts.SetWill(StatusTopic, "offline", 0 /* qos */, true /* retained */)
	opts.OnConnect = func(c mqtt.Client) {
		tr.LazyPrintf("OnConnect")
	}
	mqttClient := mqtt.NewClient(opts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connection failed: %v", token.Error())
	}
	tr.LazyPrintf("Connected to MQTT broker %s", broker)

	for r := range requests {
		tr.LazyPrintf("publishing on topic %s: %q", r.Topic, r.Payload)
		// discard Token, MQTT publishing is best-effort
		_ = mqttClient.Publish(r.Topic, r.Qos, r.Retained, r.Payload)
	}
	mqttClient.Disconnect(250 /* ms */)
	return nil
}

var (
	mu         sync.Mutex
	publish    chan PublishRequest
	lastStatus string
)

// MQTT starts publishing to broker (e.g. tcp://localhost:1883). Until MQTT
// is called, Publishf is a no-op.
func MQTT(broker, clientID string) {
	mu.Lock()
	defer mu.Unlock()
	publish = make(chan PublishRequest)
	go func(requests <-chan PublishRequest) {
		if err := mqttLoop(broker, clientID, requests); err != nil {
			log.Print(err)
		}
	}(publish)
}

// Publishf formats a status message and publishes it, unless it equals the
// previous one.
func Publishf(format string, args ...interface{}) {
	status := fmt.Sprintf(format, args...)
	mu.Lock()
	defer mu.Unlock()
	// Prevent duplicate messages if status has not changed
	if lastStatus == status {
		return
	}
	lastStatus = status
	select {
	case publish <- PublishRequest{
		Topic:    StatusTopic,
		Retained: true,
		Payload:  []byte(status),
	}:
	default:
		// drop message if MQTT is not connected
	}
}
