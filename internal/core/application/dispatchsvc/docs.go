// Package dispatchsvc matches ready orders with delivery partners.
//
// Two matching modes exist. AssignBestPartner scores every partner in range
// and assigns the winner directly. FindAvailablePartners broadcasts the
// order to every candidate in an expanding search radius and lets the first
// partner that accepts win; the resulting offer lives in memory until it is
// accepted, expires, or is garbage-collected by the cleanup job.
package dispatchsvc
