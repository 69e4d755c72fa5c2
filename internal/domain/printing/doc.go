// Package printing contains the Printing bounded context.
// It tracks print jobs for quotations and invoices and describes the page
// geometry and pagination strategy every job is rendered with.
package printing
