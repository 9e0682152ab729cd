// Package task manages background job queuing, processing, and lifecycle.
// It provides mechanisms for asynchronous execution of the signup
// enrichment pipeline (geolocation lookup chained to a holiday flag
// update), ensuring slow provider calls don't block HTTP request
// handling and can recover from application restarts.
package task
