/*
Package queue defines the tasks encoding workers perform, each a
batch of trees to encode, and an interface for a Queue to manage
them.

It also provides an in-memory implementation of the Queue interface
*/
package queue
