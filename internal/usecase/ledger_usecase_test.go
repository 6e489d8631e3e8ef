package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/adapter/repository"
	"helpdesk/internal/domain/entity"
	domainrepo "helpdesk/internal/domain/repository"
)

// countingRepo counts writes so tests can assert no-op updates never hit the store.
type countingRepo struct {
	domainrepo.ConversationRepository
	appends    atomic.Int32
	overwrites atomic.Int32
}

func newCountingRepo() *countingRepo {
	return &countingRepo{ConversationRepository: repository.NewMemoryConversationRepository()}
}

func (r *countingRepo) AppendToLedger(ctx context.Context, id entity.ConversationID, m *entity.Message) error {
	r.appends.Add(1)
	return r.ConversationRepository.AppendToLedger(ctx, id, m)
}

func (r *countingRepo) OverwriteLedger(ctx context.Context, id entity.ConversationID, ledger []*entity.Message) error {
	r.overwrites.Add(1)
	return r.ConversationRepository.OverwriteLedger(ctx, id, ledger)
}

func appendText(t *testing.T, uc *LedgerUseCase, id entity.ConversationID, role entity.Role, text string) *entity.Message {
	t.Helper()
	m, err := uc.Append(context.Background(), AppendInput{
		ConversationID: id,
		SenderRole:     role,
		Content:        entity.MessageContent{Text: text},
	})
	require.NoError(t, err)
	return m
}

func TestAppendPreservesOrderAndIncreasesIDs(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	id := entity.ComplaintConversation(42)

	var sent []*entity.Message
	for _, text := range []string{"one", "two", "three", "four"} {
		sent = append(sent, appendText(t, uc, id, entity.RoleCustomer, text))
	}

	ledger, err := uc.ListByConversation(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, ledger, 4)
	for i, m := range ledger {
		assert.Equal(t, sent[i].ID, m.ID)
		assert.Equal(t, entity.StatusSent, m.Status)
		assert.Equal(t, "42", m.ConversationID)
		if i > 0 {
			assert.Greater(t, m.ID, ledger[i-1].ID)
		}
	}
}

func TestAppendRejectsEmptyContent(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)

	_, err := uc.Append(context.Background(), AppendInput{
		ConversationID: entity.ComplaintConversation(1),
		SenderRole:     entity.RoleCustomer,
		Content:        entity.MessageContent{Text: "   "},
	})
	assert.Error(t, err)

	_, err = uc.Append(context.Background(), AppendInput{
		SenderRole: entity.RoleCustomer,
		Content:    entity.MessageContent{Text: "hi"},
	})
	assert.Error(t, err)
}

func TestListUnknownConversationIsEmpty(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)

	ledger, err := uc.ListByConversation(context.Background(), entity.ComplaintConversation(999))
	require.NoError(t, err)
	assert.NotNil(t, ledger)
	assert.Empty(t, ledger)
}

func TestAppendResolvesReplyPreview(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	id := entity.ComplaintConversation(5)
	ctx := context.Background()

	question := appendText(t, uc, id, entity.RoleCustomer, "is it fixed?")
	media, err := uc.Append(ctx, AppendInput{
		ConversationID: id,
		SenderRole:     entity.RoleCustomer,
		Content:        entity.MessageContent{ImageURL: "https://cdn/photo.jpg"},
	})
	require.NoError(t, err)

	reply, err := uc.Append(ctx, AppendInput{
		ConversationID:   id,
		SenderRole:       entity.RoleSupport,
		Content:          entity.MessageContent{Text: "yes"},
		ReplyToMessageID: &question.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.RepliedMessage)
	assert.Equal(t, question.ID, reply.RepliedMessage.ID)
	assert.Equal(t, "is it fixed?", reply.RepliedMessage.Text)
	assert.Equal(t, entity.RoleCustomer, reply.RepliedMessage.SenderRole)

	mediaReply, err := uc.Append(ctx, AppendInput{
		ConversationID:   id,
		SenderRole:       entity.RoleSupport,
		Content:          entity.MessageContent{Text: "nice photo"},
		ReplyToMessageID: &media.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Media", mediaReply.RepliedMessage.Text)

	missing := int64(123)
	dangling, err := uc.Append(ctx, AppendInput{
		ConversationID:   id,
		SenderRole:       entity.RoleSupport,
		Content:          entity.MessageContent{Text: "?"},
		ReplyToMessageID: &missing,
	})
	require.NoError(t, err)
	assert.Nil(t, dangling.RepliedMessage)
	require.NotNil(t, dangling.ReplyToMessageID)
	assert.Equal(t, missing, *dangling.ReplyToMessageID)
}

func TestStatusNeverRegresses(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	id := entity.ComplaintConversation(8)
	ctx := context.Background()

	appendText(t, uc, id, entity.RoleSupport, "hello")

	n, err := uc.MarkRead(ctx, id, entity.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = uc.MarkDelivered(ctx, id, entity.RoleCustomer)
	require.NoError(t, err)
	assert.Zero(t, n)

	ledger, err := uc.ListByConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRead, ledger[0].Status)
}

func TestSetStatusIsIdempotentWithoutSecondWrite(t *testing.T) {
	repo := newCountingRepo()
	uc := NewLedgerUseCase(repo, nil)
	id := entity.ComplaintConversation(9)
	ctx := context.Background()

	appendText(t, uc, id, entity.RoleCustomer, "a")
	appendText(t, uc, id, entity.RoleCustomer, "b")

	n, err := uc.MarkDelivered(ctx, id, entity.RoleSupport)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), repo.overwrites.Load())

	n, err = uc.MarkDelivered(ctx, id, entity.RoleSupport)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int32(1), repo.overwrites.Load())
}

func TestMarkReadOnlyTouchesAddressedMessages(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	id := entity.ComplaintConversation(10)
	ctx := context.Background()

	appendText(t, uc, id, entity.RoleCustomer, "from customer")
	appendText(t, uc, id, entity.RoleSupport, "from support")

	n, err := uc.MarkRead(ctx, id, entity.RoleSupport)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ledger, err := uc.ListByConversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRead, ledger[0].Status)
	assert.Equal(t, entity.StatusSent, ledger[1].Status)
}

func TestConcurrentAppendsToOneConversation(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	id := entity.ComplaintConversation(77)

	const writers = 16
	const perWriter = 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := uc.Append(context.Background(), AppendInput{
					ConversationID: id,
					SenderRole:     entity.RoleCustomer,
					Content:        entity.MessageContent{Text: "x"},
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	ledger, err := uc.ListByConversation(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, ledger, writers*perWriter)

	for i := 1; i < len(ledger); i++ {
		assert.Greater(t, ledger[i].ID, ledger[i-1].ID)
	}
	assert.Zero(t, uc.locks.size())
}

func TestEmployeeThreadsAreIsolatedFromComplaints(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	ctx := context.Background()

	complaint := entity.ComplaintConversation(9)
	thread := entity.EmployeeThread("9")

	appendText(t, uc, complaint, entity.RoleCustomer, "complaint message")
	appendText(t, uc, thread, entity.RoleEmployee, "employee message")

	complaintLedger, err := uc.ListByConversation(ctx, complaint)
	require.NoError(t, err)
	threadLedger, err := uc.ListByConversation(ctx, thread)
	require.NoError(t, err)

	require.Len(t, complaintLedger, 1)
	require.Len(t, threadLedger, 1)
	assert.Equal(t, "complaint message", complaintLedger[0].Text)
	assert.Equal(t, "EMP_9", threadLedger[0].ConversationID)
}

func TestHasSupportReply(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	id := entity.ComplaintConversation(3)
	ctx := context.Background()

	appendText(t, uc, id, entity.RoleCustomer, "hi")
	replied, err := uc.HasSupportReply(ctx, id)
	require.NoError(t, err)
	assert.False(t, replied)

	appendText(t, uc, id, entity.Role("admin"), "legacy agent")
	replied, err = uc.HasSupportReply(ctx, id)
	require.NoError(t, err)
	assert.True(t, replied)
}

func TestBasicExchange(t *testing.T) {
	uc := NewLedgerUseCase(repository.NewMemoryConversationRepository(), nil)
	id := entity.ComplaintConversation(100)
	ctx := context.Background()

	appendText(t, uc, id, entity.RoleCustomer, "my machine is broken")
	_, err := uc.MarkDelivered(ctx, id, entity.RoleSupport)
	require.NoError(t, err)
	_, err = uc.MarkRead(ctx, id, entity.RoleSupport)
	require.NoError(t, err)

	appendText(t, uc, id, entity.RoleSupport, "on it")
	_, err = uc.MarkDelivered(ctx, id, entity.RoleCustomer)
	require.NoError(t, err)

	ledger, err := uc.ListByConversation(ctx, id)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, entity.StatusRead, ledger[0].Status)
	assert.Equal(t, entity.StatusDelivered, ledger[1].Status)
}
