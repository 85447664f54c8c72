// Package automation turns segment membership transitions into flow trigger
// jobs. It decides which flows fire and hands one job per match to a durable
// queue; executing the flows happens elsewhere.
package automation
