package policy

import "codeberg.org/mutker/scened/internal/errors"

const (
	ErrDuplicateAgent      = errors.ErrorCode("policy_duplicate_agent")
	ErrNoCPUPolicy         = errors.ErrorCode("policy_no_cpu_policy")
	ErrGovernorUnavailable = errors.ErrorCode("policy_governor_unavailable")
	ErrApplyFailed         = errors.ErrPolicyApply
)
