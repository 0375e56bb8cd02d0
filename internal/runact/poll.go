package runact

import "time"

// await repeatedly invokes probe until it reports done, the probe fails, or
// timeout elapses. The deadline is measured from before the first probe, so
// a timeout surfaces no earlier than timeout and no later than timeout plus
// one interval plus one probe call. probe errors are fatal immediately; a
// "not yet" result sleeps interval and tries again.
func await[T any](what string, timeout, interval time.Duration, probe func() (T, bool, error)) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	for {
		v, done, err := probe()
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
		if time.Now().After(deadline) {
			return zero, &TimeoutError{What: what, After: timeout}
		}
		time.Sleep(interval)
	}
}
