package base

import "github.com/pkg/errors"

// SpaceInformation bundles a state space with the validity and motion
// checking machinery a planner needs. It mirrors the role the surrounding
// framework plays for the core: the planners in this repository only ever see
// this narrow surface.
type SpaceInformation struct {
	name     string
	space    StateSpace
	validity StateValidityChecker
	motion   MotionValidator
}

// NewSpaceInformation wraps a state space. A motion validator must be set
// before planning; without a validity checker every state counts as valid.
func NewSpaceInformation(name string, space StateSpace) *SpaceInformation {
	return &SpaceInformation{name: name, space: space}
}

// Name returns the name given at construction, typically a robot name. It is
// how pairwise validity checkers tell robots apart.
func (si *SpaceInformation) Name() string {
	return si.name
}

// Space returns the wrapped state space.
func (si *SpaceInformation) Space() StateSpace {
	return si.space
}

// SetStateValidityChecker installs the validity checker consulted by IsValid.
func (si *SpaceInformation) SetStateValidityChecker(c StateValidityChecker) {
	si.validity = c
}

// StateValidityChecker returns the installed checker, or nil.
func (si *SpaceInformation) StateValidityChecker() StateValidityChecker {
	return si.validity
}

// SetMotionValidator installs the motion validator consulted by CheckMotion.
func (si *SpaceInformation) SetMotionValidator(mv MotionValidator) {
	si.motion = mv
}

// MotionValidator returns the installed motion validator, or nil.
func (si *SpaceInformation) MotionValidator() MotionValidator {
	return si.motion
}

// IsValid reports whether state is valid. With no checker installed every
// state is valid.
func (si *SpaceInformation) IsValid(s State) bool {
	if si.validity == nil {
		return true
	}
	return si.validity.IsValid(s)
}

// CheckMotion reports whether the motion between two states is valid.
func (si *SpaceInformation) CheckMotion(a, b State) bool {
	return si.motion.CheckMotion(a, b)
}

// Setup verifies the space information is complete enough to plan with.
func (si *SpaceInformation) Setup() error {
	if si.space == nil {
		return errors.New("space information has no state space")
	}
	if si.motion == nil {
		return errors.New("space information has no motion validator")
	}
	return nil
}
