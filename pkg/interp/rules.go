// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package interp

import (
	"github.com/Thermoquad/prom/pkg/promwire"
)

// handler runs one step of a command. next is the state the rule expects
// to move to; the returned state is adopted instead.
type handler func(in *Interpreter, next State) State

type rule struct {
	op       byte
	required State
	handle   handler
	next     State
}

// anyCommand matches when no command is pending and reads the next one
const anyCommand = 0

// rules is consulted in order; the first match wins.
var rules = [...]rule{
	{anyCommand, StateReady, (*Interpreter).readCommand, StateWaitChip},

	{promwire.CmdVersion, StateAny, (*Interpreter).execVersion, StateReady},

	{promwire.CmdReadAll, StateWaitChip, (*Interpreter).readLastChip, StateExecuting},
	{promwire.CmdReadAll, StateExecuting, (*Interpreter).execReadAll, StateReady},

	{promwire.CmdBlank, StateWaitChip, (*Interpreter).readLastChip, StateExecuting},
	{promwire.CmdBlank, StateExecuting, (*Interpreter).execBlank, StateReady},

	{promwire.CmdRead, StateWaitChip, (*Interpreter).readChip, StateWaitAddress},
	{promwire.CmdRead, StateWaitAddress, (*Interpreter).readLastAddress, StateExecuting},
	{promwire.CmdRead, StateExecuting, (*Interpreter).execRead, StateReady},

	{promwire.CmdWrite, StateWaitChip, (*Interpreter).readChip, StateWaitAddress},
	{promwire.CmdWrite, StateWaitAddress, (*Interpreter).readAddress, StateWaitValue},
	{promwire.CmdWrite, StateWaitValue, (*Interpreter).readValue, StateExecuting},
	{promwire.CmdWrite, StateExecuting, (*Interpreter).execProgram, StateReady},

	{promwire.CmdSimulate, StateWaitChip, (*Interpreter).readChip, StateWaitAddress},
	{promwire.CmdSimulate, StateWaitAddress, (*Interpreter).readAddress, StateWaitValue},
	{promwire.CmdSimulate, StateWaitValue, (*Interpreter).readValue, StateExecuting},
	{promwire.CmdSimulate, StateExecuting, (*Interpreter).execProgram, StateReady},

	{promwire.CmdSelfTest, StateWaitTestNumber, (*Interpreter).readTestNumber, StateWaitTestParams},
	{promwire.CmdSelfTest, StateWaitTestParams, (*Interpreter).readTestParam, StateExecuting},
	{promwire.CmdSelfTest, StateExecuting, (*Interpreter).execSelfTest, StateReady},
}

// match finds the rule for the pending command in the given state.
func match(op byte, state State) (rule, bool) {
	for _, r := range rules {
		if r.op != op {
			continue
		}
		if r.required == state || r.required == StateAny {
			return r, true
		}
	}
	return rule{}, false
}
