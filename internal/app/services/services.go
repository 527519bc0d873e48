// Package services holds sentinels shared by the domain services.
// Business rules live in the subpackages; HTTP handlers stay thin and
// translate these errors into response codes.
package services

import "errors"

// ErrNotOwner reports an action attempted by someone other than the
// resource owner (or, for applications, the posting employer).
var ErrNotOwner = errors.New("not the resource owner")

// ErrRoleForbidden reports an action the actor's role does not permit,
// such as a job seeker posting a job.
var ErrRoleForbidden = errors.New("role not permitted")
