// Package broadcast is the topic registry that fans refresh results out to
// streaming connections.
//
// Each connection may belong to any number of topics. In interactive mode a
// topic is a display symbol; in broadcast mode every connection is placed in
// the single shared topic when it joins. Delivery is best effort: a
// subscriber whose buffer is full simply misses the message.
package broadcast
