package kafka

import "github.com/segmentio/kafka-go"

// headerCarrier lets the otel propagator read and write kafka headers.
type headerCarrier []kafka.Header

func (h *headerCarrier) Get(key string) string {
	for _, header := range *h {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}

func (h *headerCarrier) Set(key, value string) {
	for i, header := range *h {
		if header.Key == key {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*h))
	for _, header := range *h {
		keys = append(keys, header.Key)
	}
	return keys
}
