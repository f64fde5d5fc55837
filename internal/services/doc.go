// Package services defines the error markers and context helpers shared by
// the siren collaborators and the workflow.
//
// Wrap tags a failure with one of the marker errors so callers can classify
// it with errors.Is (Retryable, Classify) without parsing messages. The
// context helpers stamp the run's request id, the current stage, and the
// song cid being processed; internal/logging reads them back onto every
// record logged with that context.
package services
