// Package resilience guards calls to the gateway's external providers: the
// embedding API and the web-search API.
//
// An Executor layers the guards around one logical call, outermost first:
//
//	rate limiter -> bulkhead -> circuit breaker -> retry -> timeout -> op
//
// The breaker sits outside the retry loop, so a call that exhausts its
// retries counts as one failure. Each attempt gets its own timeout.
//
//	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    Name:         "websearch",
//	    MaxFailures:  5,
//	    ResetTimeout: 30 * time.Second,
//	})
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(breaker),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//	err := exec.Execute(ctx, callProvider)
//
// Breaker state is exported to health checks through CircuitBreaker.State.
package resilience
