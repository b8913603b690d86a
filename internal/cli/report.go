package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/compose-network/bridge-deployer/internal/deploy"
	"github.com/compose-network/bridge-deployer/internal/record"
	"github.com/ethereum/go-ethereum/common"
)

const banner = "!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!!"

// WriteFailureReport prints what an operator must know after a failed run: which contracts
// exist on chain without being recorded, and what to run next. Errors that need no manual
// follow-up print nothing.
func WriteFailureReport(w io.Writer, err error) {
	if err == nil {
		return
	}

	var sections []string

	var persistErr *deploy.PersistError
	if errors.As(err, &persistErr) {
		sections = append(sections, fmt.Sprintf(
			"The %s chain was fully deployed but the deployment record could not be saved.\n"+
				"These contracts are live and NOT recorded. Record them manually before re-running:\n%s"+
				"  cause: %v",
			persistErr.Chain, addressLines(persistErr.Entry.Contracts), persistErr.Err))
	}

	var patchErr *deploy.PatchError
	if errors.As(err, &patchErr) {
		sections = append(sections, fmt.Sprintf(
			"The native chain is deployed but the cross-chain patch %s did not complete.\n"+
				"Native contracts:\n%s"+
				"The %s field still holds the placeholder. Close it with: bridgedeploy patch\n"+
				"  cause: %v",
			patchErr.Binding, addressLines(patchErr.Deployed.Contracts), patchErr.Binding.Field, patchErr.Err))
	}

	var stepErr *deploy.StepError
	if errors.As(err, &stepErr) {
		section := fmt.Sprintf("The %s chain run stopped at step %d (%s).\n", stepErr.Chain, stepErr.Step, stepErr.Action)
		if len(stepErr.Deployed) > 0 {
			section += "These contracts were deployed by the aborted run and will not be reused:\n" + addressLines(stepErr.Deployed)
		}
		section += fmt.Sprintf("Nothing was recorded. Re-run: bridgedeploy %s\n  cause: %v", stepErr.Chain, stepErr.Err)
		sections = append(sections, section)
	}

	if len(sections) == 0 {
		return
	}

	_, _ = fmt.Fprintf(w, "\n%s\n%s\n%s\n\n", banner, "  DEPLOYMENT NEEDS ATTENTION", banner)
	for _, s := range sections {
		_, _ = fmt.Fprintf(w, "%s\n\n", s)
	}
	_, _ = fmt.Fprintln(w, banner)
}

func addressLines(addrs map[record.ContractRole]common.Address) string {
	var b strings.Builder
	for _, role := range slices.Sorted(maps.Keys(addrs)) {
		fmt.Fprintf(&b, "  %-9s %s\n", role, addrs[role].Hex())
	}
	return b.String()
}
