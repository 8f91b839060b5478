package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
	"github.com/roach88/forkbench/internal/units"
)

const (
	keySchoolAdmin        = "school:admin"
	keySchoolToken        = "school:token"
	keySchoolStudentCount = "school:students"
	keySchoolStaffCount   = "school:staff"
)

// FaucetAmount is what claimFaucet mints, in whole tokens.
const FaucetAmount = 1000

// Student is a school enrolment record.
type Student struct {
	ID      uint64         `json:"id"`
	Name    string         `json:"name"`
	Level   uint8          `json:"level"`
	Age     uint8          `json:"age"`
	Account common.Address `json:"account"`
	Claimed bool           `json:"claimed"`
}

// CanonicalValue implements canon.Valuer.
func (s Student) CanonicalValue() any {
	return map[string]any{
		"id":      s.ID,
		"name":    s.Name,
		"level":   s.Level,
		"age":     s.Age,
		"account": s.Account,
		"claimed": s.Claimed,
	}
}

// Staff is a school payroll record. Salary is in whole tokens.
type Staff struct {
	ID      uint64         `json:"id"`
	Name    string         `json:"name"`
	Salary  string         `json:"salary"`
	Account common.Address `json:"account"`
	Claimed bool           `json:"claimed"`
}

// CanonicalValue implements canon.Valuer.
func (s Staff) CanonicalValue() any {
	return map[string]any{
		"id":      s.ID,
		"name":    s.Name,
		"salary":  s.Salary,
		"account": s.Account,
		"claimed": s.Claimed,
	}
}

func studentKey(id uint64) string { return fmt.Sprintf("school:student:%d", id) }
func staffKey(id uint64) string   { return fmt.Sprintf("school:staff:%d", id) }

func studentOfKey(a common.Address) string { return "school:student-of:" + a.Hex() }
func staffOfKey(a common.Address) string   { return "school:staff-of:" + a.Hex() }

// School collects fees in an 18-decimal ERC20 and pays staff from its own
// balance. The deployer is admin. Students pay level * 10^18 tokens to
// claim their id; staff earn salary * 10^18 per payStaff.
//
// Constructor argument: the fee token address. The school must be a minter
// of that token for claimFaucet to work.
type School struct {
	handlers map[ledger.Operation]simchain.Handler
}

// NewSchool returns a school contract.
func NewSchool() *School {
	s := &School{}
	s.handlers = map[ledger.Operation]simchain.Handler{
		ledger.OpAddStudent:           s.addStudent,
		ledger.OpClaimStudentID:       s.claimStudentID,
		ledger.OpGetStudent:           s.getStudent,
		ledger.OpGetAllStudentDetails: s.getAllStudents,
		ledger.OpAddStaff:             s.addStaff,
		ledger.OpClaimStaffID:         s.claimStaffID,
		ledger.OpGetStaff:             s.getStaff,
		ledger.OpPayStaff:             s.payStaff,
		ledger.OpGetAllStaffDetails:   s.getAllStaff,
		ledger.OpClaimFaucet:          faucet(keySchoolToken),
	}
	return s
}

// Kind implements simchain.Contract.
func (s *School) Kind() string { return "school" }

// Handlers implements simchain.Contract.
func (s *School) Handlers() map[ledger.Operation]simchain.Handler { return s.handlers }

// Init implements simchain.Initializer.
func (s *School) Init(env *simchain.Env, args []any) error {
	token, err := tokenArg("school", args)
	if err != nil {
		return err
	}
	if err := env.PutAddress(keySchoolAdmin, env.Caller()); err != nil {
		return err
	}
	return env.PutAddress(keySchoolToken, token)
}

func (s *School) onlyAdmin(env *simchain.Env) error {
	admin, err := env.GetAddress(keySchoolAdmin)
	if err != nil {
		return err
	}
	return simchain.Require(env.Caller() == admin, "Only admin can make this call")
}

func (s *School) addStudent(env *simchain.Env, args []any) ([]any, error) {
	if err := s.onlyAdmin(env); err != nil {
		return nil, err
	}
	id, err := env.GetUint(keySchoolStudentCount)
	if err != nil {
		return nil, err
	}
	st := Student{ID: id, Name: args[0].(string), Level: args[1].(uint8), Age: args[2].(uint8)}
	if err := env.PutJSON(studentKey(id), st); err != nil {
		return nil, err
	}
	if err := env.PutUint(keySchoolStudentCount, id+1); err != nil {
		return nil, err
	}
	env.Emit("StudentAdded", map[string]any{"id": id, "name": st.Name, "level": st.Level})
	return []any{st}, nil
}

func (s *School) claimStudentID(env *simchain.Env, args []any) ([]any, error) {
	id := args[0].(*big.Int)
	count, err := env.GetUint(keySchoolStudentCount)
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(id.IsUint64() && id.Uint64() < count, "Invalid student id"); err != nil {
		return nil, err
	}
	var st Student
	if _, err := env.GetJSON(studentKey(id.Uint64()), &st); err != nil {
		return nil, err
	}
	if err := simchain.Require(!st.Claimed, "Student id already claimed"); err != nil {
		return nil, err
	}

	token, err := env.GetAddress(keySchoolToken)
	if err != nil {
		return nil, err
	}
	fee := units.Scale(int64(st.Level), 18)
	if _, err := env.Call(token, ledger.OpTransferFrom, env.Caller(), env.Self(), fee); err != nil {
		return nil, err
	}

	st.Claimed = true
	st.Account = env.Caller()
	if err := env.PutJSON(studentKey(st.ID), st); err != nil {
		return nil, err
	}
	if err := env.PutUint(studentOfKey(env.Caller()), st.ID+1); err != nil {
		return nil, err
	}
	env.Emit("StudentIdClaimed", map[string]any{"id": st.ID, "student": env.Caller(), "fee": fee})
	return nil, nil
}

func (s *School) getStudent(env *simchain.Env, args []any) ([]any, error) {
	ref, err := env.GetUint(studentOfKey(args[0].(common.Address)))
	if err != nil {
		return nil, err
	}
	if ref == 0 {
		return nil, simchain.Reverted("Student not found")
	}
	var st Student
	if _, err := env.GetJSON(studentKey(ref-1), &st); err != nil {
		return nil, err
	}
	return []any{st}, nil
}

func (s *School) getAllStudents(env *simchain.Env, _ []any) ([]any, error) {
	count, err := env.GetUint(keySchoolStudentCount)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, count)
	for id := uint64(0); id < count; id++ {
		var st Student
		if _, err := env.GetJSON(studentKey(id), &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return []any{out}, nil
}

func (s *School) addStaff(env *simchain.Env, args []any) ([]any, error) {
	if err := s.onlyAdmin(env); err != nil {
		return nil, err
	}
	id, err := env.GetUint(keySchoolStaffCount)
	if err != nil {
		return nil, err
	}
	sf := Staff{ID: id, Name: args[0].(string), Salary: args[1].(*big.Int).String()}
	if err := env.PutJSON(staffKey(id), sf); err != nil {
		return nil, err
	}
	if err := env.PutUint(keySchoolStaffCount, id+1); err != nil {
		return nil, err
	}
	env.Emit("StaffAdded", map[string]any{"id": id, "name": sf.Name})
	return []any{sf}, nil
}

func (s *School) claimStaffID(env *simchain.Env, args []any) ([]any, error) {
	id := args[0].(*big.Int)
	count, err := env.GetUint(keySchoolStaffCount)
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(id.IsUint64() && id.Uint64() < count, "Invalid staff id"); err != nil {
		return nil, err
	}
	var sf Staff
	if _, err := env.GetJSON(staffKey(id.Uint64()), &sf); err != nil {
		return nil, err
	}
	if err := simchain.Require(!sf.Claimed, "Staff id already claimed"); err != nil {
		return nil, err
	}
	sf.Claimed = true
	sf.Account = env.Caller()
	if err := env.PutJSON(staffKey(sf.ID), sf); err != nil {
		return nil, err
	}
	if err := env.PutUint(staffOfKey(env.Caller()), sf.ID+1); err != nil {
		return nil, err
	}
	env.Emit("StaffIdClaimed", map[string]any{"id": sf.ID, "staff": env.Caller()})
	return nil, nil
}

func (s *School) staffOf(env *simchain.Env, addr common.Address) (Staff, error) {
	var sf Staff
	ref, err := env.GetUint(staffOfKey(addr))
	if err != nil {
		return sf, err
	}
	if ref == 0 {
		return sf, simchain.Reverted("Staff not found")
	}
	_, err = env.GetJSON(staffKey(ref-1), &sf)
	return sf, err
}

func (s *School) getStaff(env *simchain.Env, args []any) ([]any, error) {
	sf, err := s.staffOf(env, args[0].(common.Address))
	if err != nil {
		return nil, err
	}
	return []any{sf}, nil
}

func (s *School) payStaff(env *simchain.Env, args []any) ([]any, error) {
	if err := s.onlyAdmin(env); err != nil {
		return nil, err
	}
	addr := args[0].(common.Address)
	sf, err := s.staffOf(env, addr)
	if err != nil {
		return nil, err
	}
	salary, ok := new(big.Int).SetString(sf.Salary, 10)
	if !ok {
		return nil, fmt.Errorf("staff %d: corrupt salary %q", sf.ID, sf.Salary)
	}
	amount := salary.Mul(salary, units.Pow10(18))
	token, err := env.GetAddress(keySchoolToken)
	if err != nil {
		return nil, err
	}
	if _, err := env.Call(token, ledger.OpTransfer, addr, amount); err != nil {
		return nil, err
	}
	env.Emit("StaffPaid", map[string]any{"staff": addr, "amount": amount})
	return nil, nil
}

func (s *School) getAllStaff(env *simchain.Env, _ []any) ([]any, error) {
	count, err := env.GetUint(keySchoolStaffCount)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, count)
	for id := uint64(0); id < count; id++ {
		var sf Staff
		if _, err := env.GetJSON(staffKey(id), &sf); err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return []any{out}, nil
}

// faucet returns a claimFaucet handler minting FaucetAmount whole tokens of
// the token stored under tokenKey to the given address.
func faucet(tokenKey string) simchain.Handler {
	return func(env *simchain.Env, args []any) ([]any, error) {
		token, err := env.GetAddress(tokenKey)
		if err != nil {
			return nil, err
		}
		_, err = env.Call(token, ledger.OpMint, args[0].(common.Address), units.Scale(FaucetAmount, 18))
		return nil, err
	}
}

// tokenArg decodes a single token-address constructor argument.
func tokenArg(kind string, args []any) (common.Address, error) {
	if len(args) != 1 {
		return common.Address{}, fmt.Errorf("%s constructor: expected 1 argument, got %d", kind, len(args))
	}
	token, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s constructor: want address, got %T", kind, args[0])
	}
	return token, nil
}
