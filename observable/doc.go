// Package observable provides a hot, stateful broadcast value.
//
// A Subject always holds a current value. Every call to Next replaces it and
// notifies all subscribers; a new Subscription first receives the current
// value and then every later one, in order. Publishing never blocks: each
// subscription buffers undelivered values until its channel is read.
//
// Complete ends the subject. Subscriptions drain their buffered values and
// then close their channel; Next after Complete is ignored.
package observable
