// Package generation provides the boundary between the worker's consumer
// loop and the image synthesis backend. It abstracts the details of the
// model API so the pipeline does not couple to a specific provider.
package generation
