package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

func newSchool(t *testing.T) (tc *testChain, token, school common.Address) {
	t.Helper()
	tc = newTestChain(t)
	token = tc.deploy(0, NewFaucetToken(), "WEB3CXIV", "CXIV", uint8(18), n(100_000_000))
	school = tc.deploy(0, NewSchool(), token)
	tc.mustSubmit(0, token, ledger.OpAddMinter, school)
	tc.mustSubmit(0, token, ledger.OpMint, school, units.Scale(10_000, 18))
	return tc, token, school
}

func TestSchool_StudentClaimsID(t *testing.T) {
	tc, token, school := newSchool(t)
	student := tc.signers[2]

	r := tc.mustSubmit(0, school, ledger.OpAddStudent, "Bethel", uint8(200), uint8(20))
	added := r.Returns[0].(Student)
	assert.Equal(t, uint64(0), added.ID)
	assert.Equal(t, "Bethel", added.Name)
	assert.Equal(t, uint8(200), added.Level)

	_, err := tc.submit(1, school, ledger.OpAddStudent, "Bethel", uint8(200), uint8(20))
	requireRejected(t, err, "Only admin can make this call")

	tc.mustSubmit(2, school, ledger.OpClaimFaucet, student)
	assert.Equal(t, 0, units.Scale(1000, 18).Cmp(tc.balance(token, student)))

	_, err = tc.submit(2, school, ledger.OpClaimStudentID, n(0))
	requireRejected(t, err, "ERC20: insufficient allowance")

	fee := units.Scale(200, 18)
	tc.mustSubmit(2, token, ledger.OpApprove, school, fee)
	schoolBefore, studentBefore := tc.balance(token, school), tc.balance(token, student)

	tc.mustSubmit(2, school, ledger.OpClaimStudentID, n(0))
	assert.Equal(t, 0, fee.Cmp(new(big.Int).Sub(tc.balance(token, school), schoolBefore)))
	assert.Equal(t, 0, fee.Cmp(new(big.Int).Sub(studentBefore, tc.balance(token, student))))

	_, err = tc.submit(2, school, ledger.OpClaimStudentID, n(0))
	requireRejected(t, err, "Student id already claimed")
	_, err = tc.submit(2, school, ledger.OpClaimStudentID, n(5))
	requireRejected(t, err, "Invalid student id")

	got := tc.call(school, ledger.OpGetStudent, student)[0].(Student)
	assert.True(t, got.Claimed)
	assert.Equal(t, student, got.Account)

	all := tc.call(school, ledger.OpGetAllStudentDetails)[0].([]any)
	require.Len(t, all, 1)

	_, err = tc.chain.Call(tc.ctx, school, ledger.OpGetStudent, tc.signers[4])
	requireRejected(t, err, "Student not found")
}

func TestSchool_PayStaff(t *testing.T) {
	tc, token, school := newSchool(t)
	staff := tc.signers[3]

	r := tc.mustSubmit(0, school, ledger.OpAddStaff, "Bethel", n(200))
	assert.Equal(t, uint64(0), r.Returns[0].(Staff).ID)

	_, err := tc.submit(3, school, ledger.OpAddStaff, "Bethel", n(200))
	requireRejected(t, err, "Only admin can make this call")

	_, err = tc.submit(0, school, ledger.OpPayStaff, staff)
	requireRejected(t, err, "Staff not found")

	tc.mustSubmit(3, school, ledger.OpClaimStaffID, n(0))
	_, err = tc.submit(4, school, ledger.OpClaimStaffID, n(0))
	requireRejected(t, err, "Staff id already claimed")

	got := tc.call(school, ledger.OpGetStaff, staff)[0].(Staff)
	assert.Equal(t, "200", got.Salary)
	assert.Equal(t, staff, got.Account)

	_, err = tc.submit(3, school, ledger.OpPayStaff, staff)
	requireRejected(t, err, "Only admin can make this call")

	schoolBefore := tc.balance(token, school)
	tc.mustSubmit(0, school, ledger.OpPayStaff, staff)
	salary := units.Scale(200, 18)
	assert.Equal(t, 0, salary.Cmp(tc.balance(token, staff)))
	assert.Equal(t, 0, salary.Cmp(new(big.Int).Sub(schoolBefore, tc.balance(token, school))))

	all := tc.call(school, ledger.OpGetAllStaffDetails)[0].([]any)
	assert.Len(t, all, 1)
}

func TestSchool_FaucetRequiresMinterRole(t *testing.T) {
	tc := newTestChain(t)
	token := tc.deploy(0, NewFaucetToken(), "WEB3CXIV", "CXIV", uint8(18), n(100_000_000))
	school := tc.deploy(0, NewSchool(), token)

	_, err := tc.submit(2, school, ledger.OpClaimFaucet, tc.signers[2])
	requireRejected(t, err, "Token: caller is not a minter")
}
