package checklist

import (
	"context"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/database"
	"github.com/gotzkowsky2/kathario-saas-sub000/pkg/models"
)

const (
	testTenant   = "tenant-1"
	testTemplate = "tpl-1"
	testInstance = "inst-1"
)

var testActor = Actor{ID: "emp-1", Name: "Alice"}

func newTestService(m *memStore) (*Service, *recordingMailer, *recordingEmitter) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	mailer := &recordingMailer{}
	emitter := &recordingEmitter{}
	svc := NewService(m, connStore{m}, instanceStore{m}, ledgerStore{m}, employeeStore{m}, tenantStore{m}, stubResolver{}, mailer, emitter, logger)
	return svc, mailer, emitter
}

func strPtr(s string) *string { return &s }

func TestClosingChecklistScenario(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Wipe counters", 1)
	m.addItem(testTenant, testTemplate, "B", nil, "Close kitchen", 2)
	m.addItem(testTenant, testTemplate, "B1", strPtr("B"), "Turn off stoves", 1)
	m.addItem(testTenant, testTemplate, "B2", strPtr("B"), "Empty fridge trays", 2)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Summary.TotalMain)
	assert.Equal(t, 1, view.Summary.CompletedMain)
	assert.Equal(t, 0, view.Summary.TotalConnected)
	assert.Equal(t, 33, view.Summary.Percentage)

	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "B1", true, nil)
	require.NoError(t, err)
	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "B2", true, nil)
	require.NoError(t, err)

	view, err = svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Summary.CompletedMain)
	assert.Equal(t, 100, view.Summary.Percentage)

	// B derives complete from its children and the walk persisted it
	row := m.itemRows[itemKey(testInstance, "B")]
	require.NotNil(t, row)
	assert.True(t, row.IsCompleted)

	result, err := svc.Submit(ctx, testActor, testTenant, testInstance, strPtr("all good"), false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, m.instances[testInstance].IsSubmitted)
}

func TestConnectionDrivenCompletion(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "C", nil, "Restock station", 1)
	m.addConnection(testTenant, "C1", "C", models.ConnectedItemKindInventory, "inv-1", 1)
	m.addConnection(testTenant, "C2", "C", models.ConnectedItemKindPrecaution, "pre-1", 2)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleConnection(ctx, testActor, testTenant, testInstance, "C1", true, nil)
	require.NoError(t, err)

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Summary.TotalMain)
	assert.Equal(t, 2, view.Summary.TotalConnected)
	assert.Equal(t, 1, view.Summary.CompletedConnected)
	assert.Equal(t, 50, view.Summary.Percentage)
	require.Len(t, view.Tree, 1)
	assert.False(t, view.Tree[0].IsCompleted)

	_, err = svc.ToggleConnection(ctx, testActor, testTenant, testInstance, "C2", true, nil)
	require.NoError(t, err)

	view, err = svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Summary.CompletedConnected)
	assert.Equal(t, 100, view.Summary.Percentage)
	assert.True(t, view.Tree[0].IsCompleted)

	// the sibling rule persisted an explicit row for the owning item
	row := m.itemRows[itemKey(testInstance, "C")]
	require.NotNil(t, row)
	assert.True(t, row.IsCompleted)

	// toggling one back flips the owning item back to incomplete
	_, err = svc.ToggleConnection(ctx, testActor, testTenant, testInstance, "C1", false, nil)
	require.NoError(t, err)
	assert.False(t, m.itemRows[itemKey(testInstance, "C")].IsCompleted)
}

func TestConnectionPropagationStopsAtOwningItem(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "P", nil, "Prep area", 1)
	m.addItem(testTenant, testTemplate, "C", strPtr("P"), "Restock station", 1)
	m.addConnection(testTenant, "C1", "C", models.ConnectedItemKindInventory, "inv-1", 1)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleConnection(ctx, testActor, testTenant, testInstance, "C1", true, nil)
	require.NoError(t, err)

	// C got its explicit row, P did not; the grandparent only catches up on
	// the next item-level toggle or at read time
	assert.NotNil(t, m.itemRows[itemKey(testInstance, "C")])
	assert.Nil(t, m.itemRows[itemKey(testInstance, "P")])

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	require.Len(t, view.Tree, 1)
	assert.True(t, view.Tree[0].IsCompleted, "read-time derivation still sees P complete")
}

func TestDerivationPrecedenceExplicitRowWins(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "P", nil, "Parent", 1)
	m.addItem(testTenant, testTemplate, "L1", strPtr("P"), "Leaf one", 1)
	m.addItem(testTenant, testTemplate, "L2", strPtr("P"), "Leaf two", 2)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "L1", true, nil)
	require.NoError(t, err)
	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "L2", true, nil)
	require.NoError(t, err)

	// force the explicit row to disagree with the children
	m.itemRows[itemKey(testInstance, "P")].IsCompleted = false

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	require.Len(t, view.Tree, 1)
	assert.False(t, view.Tree[0].IsCompleted)
	assert.True(t, view.Tree[0].Children[0].IsCompleted)
	assert.True(t, view.Tree[0].Children[1].IsCompleted)
}

func TestParentChainCascade(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "G", nil, "Grandparent", 1)
	m.addItem(testTenant, testTemplate, "P", strPtr("G"), "Parent", 1)
	m.addItem(testTenant, testTemplate, "L", strPtr("P"), "Leaf", 1)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "L", true, nil)
	require.NoError(t, err)

	assert.True(t, m.itemRows[itemKey(testInstance, "P")].IsCompleted)
	assert.True(t, m.itemRows[itemKey(testInstance, "G")].IsCompleted)
	assert.True(t, m.instances[testInstance].IsCompleted)

	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "L", false, nil)
	require.NoError(t, err)

	assert.False(t, m.itemRows[itemKey(testInstance, "P")].IsCompleted)
	assert.False(t, m.itemRows[itemKey(testInstance, "G")].IsCompleted)
	assert.False(t, m.instances[testInstance].IsCompleted)
	assert.Nil(t, m.instances[testInstance].CompletedBy)
}

func TestToggleItemIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)

	first := *m.itemRows[itemKey(testInstance, "A")]
	require.NotNil(t, first.CompletedAt)

	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)

	second := *m.itemRows[itemKey(testInstance, "A")]
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Equal(t, first.CompletedBy, second.CompletedBy)
}

func TestCrossTenantInstanceReadsAsNotFound(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance("tenant-other", testTemplate, testInstance)
	svc, _, _ := newTestService(m)

	_, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestSubmitRejectsIncomplete(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf one", 1)
	m.addItem(testTenant, testTemplate, "B", nil, "Leaf two", 2)
	svc, _, _ := newTestService(m)

	// nothing toggled yet
	_, err := svc.Submit(ctx, testActor, testTenant, testInstance, nil, false)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)
	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "B", false, nil)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, testActor, testTenant, testInstance, nil, false)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestSubmitConnectedGate(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	m.addItem(testTenant, testTemplate, "C", nil, "Connected", 2)
	m.addConnection(testTenant, "C1", "C", models.ConnectedItemKindManual, "man-1", 1)
	m.addConnection(testTenant, "C2", "C", models.ConnectedItemKindInventory, "inv-1", 2)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)
	_, err = svc.ToggleConnection(ctx, testActor, testTenant, testInstance, "C1", true, nil)
	require.NoError(t, err)
	_, err = svc.ToggleConnection(ctx, testActor, testTenant, testInstance, "C2", true, nil)
	require.NoError(t, err)
	// leave one connection incomplete again
	_, err = svc.ToggleConnection(ctx, testActor, testTenant, testInstance, "C2", false, nil)
	require.NoError(t, err)
	// put the main items back to fully complete so only the connection gate
	// can reject
	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "C", true, nil)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, testActor, testTenant, testInstance, nil, true)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	// without the stricter gate the incomplete connection is ignored
	result, err := svc.Submit(ctx, testActor, testTenant, testInstance, nil, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSubmitSendsReportBestEffort(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	m.tenantRows[testTenant] = &models.Tenant{
		ID:   testTenant,
		Name: "Demo Diner",
		NotificationSettings: database.JSONB[models.NotificationSettings]{Data: models.NotificationSettings{
			NotifyOnSubmission:   true,
			SubmissionRecipients: []string{"owner@example.com", "chef@example.com"},
		}},
	}
	svc, mailer, emitter := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)

	result, err := svc.Submit(ctx, testActor, testTenant, testInstance, nil, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.EmailSent)
	assert.Equal(t, 2, result.EmailRecipientCount)
	require.Len(t, mailer.sent, 1)
	require.Len(t, emitter.submitted, 1)
	assert.Equal(t, testActor.Name, emitter.submitted[0].SubmittedBy)
}

func TestSubmitSucceedsWhenMailFails(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	m.tenantRows[testTenant] = &models.Tenant{
		ID: testTenant,
		NotificationSettings: database.JSONB[models.NotificationSettings]{Data: models.NotificationSettings{
			NotifyOnSubmission:   true,
			SubmissionRecipients: []string{"owner@example.com"},
		}},
	}
	svc, mailer, _ := newTestService(m)
	mailer.err = assert.AnError

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)

	result, err := svc.Submit(ctx, testActor, testTenant, testInstance, nil, false)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.EmailSent)
	assert.Equal(t, 1, result.EmailRecipientCount)
}

func TestSubmitTwiceRejected(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, testActor, testTenant, testInstance, nil, false)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, testActor, testTenant, testInstance, nil, false)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestPercentageZeroWhenEmpty(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	svc, _, _ := newTestService(m)

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Summary.Percentage)
	assert.Empty(t, view.Tree)
}

func TestLegacyCompletedByIDResolvesToName(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	m.employees = append(m.employees, models.Employee{ID: "emp-9", TenantID: testTenant, Name: "Bob"})
	// a legacy row holding the employee ID where the display name belongs
	m.itemRows[itemKey(testInstance, "A")] = &models.ChecklistItemProgress{
		ID:          "row-1",
		TenantID:    testTenant,
		InstanceID:  testInstance,
		ItemID:      "A",
		IsCompleted: true,
		CompletedBy: strPtr("emp-9"),
	}
	svc, _, _ := newTestService(m)

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	require.Len(t, view.Tree, 1)
	require.NotNil(t, view.Tree[0].CompletedBy)
	assert.Equal(t, "Bob", *view.Tree[0].CompletedBy)
}

func TestCompletedByIDTracksRename(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	m.employees = append(m.employees, models.Employee{ID: testActor.ID, TenantID: testTenant, Name: "Alice Cooper"})
	svc, _, _ := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	require.NotNil(t, view.Tree[0].CompletedBy)
	assert.Equal(t, "Alice Cooper", *view.Tree[0].CompletedBy)
}

func TestDeactivatedParentPromotesChildren(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "P", nil, "Deep clean", 1)
	m.addItem(testTenant, testTemplate, "C1", strPtr("P"), "Scrub grill", 1)
	m.addItem(testTenant, testTemplate, "C2", strPtr("P"), "Degrease hood", 2)
	m.deactivateItem("P")
	svc, _, _ := newTestService(m)

	view, err := svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)

	// the orphans surface as roots and still count
	require.Len(t, view.Tree, 2)
	assert.Equal(t, "C1", view.Tree[0].ID)
	assert.Equal(t, "C2", view.Tree[1].ID)
	assert.Equal(t, 2, view.Summary.TotalMain)
	require.Len(t, view.Items, 2)

	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "C1", true, nil)
	require.NoError(t, err)

	view, err = svc.GetProgress(ctx, testTenant, testInstance)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Summary.CompletedMain)
	assert.Equal(t, 50, view.Summary.Percentage)
}

func TestCompletionEventFiresOncePerTransition(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addInstance(testTenant, testTemplate, testInstance)
	m.addItem(testTenant, testTemplate, "A", nil, "Leaf", 1)
	svc, _, emitter := newTestService(m)

	_, err := svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, emitter.completed)

	// re-applying the same state is not a transition
	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, emitter.completed)

	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", false, nil)
	require.NoError(t, err)
	_, err = svc.ToggleItem(ctx, testActor, testTenant, testInstance, "A", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, emitter.completed)
}
