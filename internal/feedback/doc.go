// Package feedback provides the business boundary for the feedback triage
// workflow. It defines the domain model and its closed enums, the queue and
// listing order, the Store interface (persistence), and the Service that
// selects the next item to review, applies dispositions, tracks resolution,
// aggregates dashboard stats and ingests new items.
package feedback
