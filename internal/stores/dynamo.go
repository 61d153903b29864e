package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/donorhub/account"
	"github.com/MrEthical07/donorhub/donations"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// DefaultResetTokenIndex is the GSI keyed by the reset token digest.
	DefaultResetTokenIndex = "resetToken-index"
	// DefaultVerificationTokenIndex is the GSI keyed by the verification token digest.
	DefaultVerificationTokenIndex = "verification_token-index"
	// DefaultDonationEmailIndex is the GSI keyed by donor email, sorted by createdAt.
	DefaultDonationEmailIndex = "email-index"
)

// DynamoAPI is the subset of *dynamodb.Client the tables use.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// AccountTable is the DynamoDB account.Store. The table is keyed by
// "email"; token digests are looked up through two GSIs.
type AccountTable struct {
	client            DynamoAPI
	table             string
	resetIndex        string
	verificationIndex string
}

// NewAccountTable returns an AccountTable over table using the default index names.
func NewAccountTable(client DynamoAPI, table string) *AccountTable {
	return &AccountTable{
		client:            client,
		table:             table,
		resetIndex:        DefaultResetTokenIndex,
		verificationIndex: DefaultVerificationTokenIndex,
	}
}

func (t *AccountTable) Get(ctx context.Context, email string) (*account.Account, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.table),
		Key:            stringKey("email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, account.ErrNotFound
	}

	var acct account.Account
	if err := attributevalue.UnmarshalMap(out.Item, &acct); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &acct, nil
}

func (t *AccountTable) Create(ctx context.Context, acct *account.Account) error {
	item, err := attributevalue.MarshalMap(acct)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	if isConditionFailed(err) {
		return account.ErrExists
	}
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

func (t *AccountTable) Update(ctx context.Context, email string, update account.Update) error {
	if update.Empty() {
		return nil
	}
	expr, err := accountUpdateExpression(update)
	if err != nil {
		return fmt.Errorf("build account update: %w", err)
	}

	_, err = t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.table),
		Key:                       stringKey("email", email),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		if update.ExpectResetToken != "" || update.ExpectVerificationToken != "" {
			return account.ErrConflict
		}
		return account.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (t *AccountTable) FindByResetToken(ctx context.Context, tokenHash string) (*account.Account, error) {
	return t.findByIndex(ctx, t.resetIndex, "resetToken", tokenHash)
}

func (t *AccountTable) FindByVerificationToken(ctx context.Context, tokenHash string) (*account.Account, error) {
	return t.findByIndex(ctx, t.verificationIndex, "verification_token", tokenHash)
}

// findByIndex resolves the owning email through the GSI, then re-reads the
// base item consistently so expiry and verification state are current.
func (t *AccountTable) findByIndex(ctx context.Context, index, attr, tokenHash string) (*account.Account, error) {
	if tokenHash == "" {
		return nil, account.ErrNotFound
	}

	keyCond := expression.Key(attr).Equal(expression.Value(tokenHash))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build token query: %w", err)
	}

	out, err := t.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(t.table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}
	if len(out.Items) == 0 {
		return nil, account.ErrNotFound
	}

	var hit struct {
		Email string `dynamodbav:"email"`
	}
	if err := attributevalue.UnmarshalMap(out.Items[0], &hit); err != nil {
		return nil, fmt.Errorf("decode %s hit: %w", index, err)
	}
	if hit.Email == "" {
		return nil, account.ErrNotFound
	}
	return t.Get(ctx, hit.Email)
}

func accountUpdateExpression(update account.Update) (expression.Expression, error) {
	var ub expression.UpdateBuilder
	set := func(attr string, v interface{}) {
		ub = ub.Set(expression.Name(attr), expression.Value(v))
	}
	remove := func(attrs ...string) {
		for _, attr := range attrs {
			ub = ub.Remove(expression.Name(attr))
		}
	}

	if update.HashedPassword != nil {
		set("hashedPassword", *update.HashedPassword)
	}
	if update.FailedAttempts != nil {
		set("failedAttempts", *update.FailedAttempts)
	}
	switch {
	case update.LockedUntil != nil:
		set("lockedUntil", *update.LockedUntil)
	case update.ClearLock:
		remove("lockedUntil")
	}
	switch {
	case update.ResetToken != nil:
		set("resetToken", update.ResetToken.Hash)
		set("resetExpires", update.ResetToken.Expires)
	case update.ClearResetToken:
		remove("resetToken", "resetExpires")
	}
	switch {
	case update.VerificationToken != nil:
		set("verification_token", update.VerificationToken.Hash)
		set("verification_expires", update.VerificationToken.Expires)
	case update.ClearVerificationToken:
		remove("verification_token", "verification_expires")
	}
	if update.EmailVerified != nil {
		set("email_verified", *update.EmailVerified)
	}
	if update.EmailSuppressed != nil {
		set("email_suppressed", *update.EmailSuppressed)
	}
	if update.SuppressionReason != nil {
		set("suppression_reason", *update.SuppressionReason)
	}
	if !update.UpdatedAt.IsZero() {
		set("updatedAt", update.UpdatedAt)
	}

	cond := expression.AttributeExists(expression.Name("email"))
	if update.ExpectResetToken != "" {
		cond = cond.And(expression.Name("resetToken").Equal(expression.Value(update.ExpectResetToken)))
	}
	if update.ExpectVerificationToken != "" {
		cond = cond.And(expression.Name("verification_token").Equal(expression.Value(update.ExpectVerificationToken)))
	}

	return expression.NewBuilder().WithUpdate(ub).WithCondition(cond).Build()
}

// DonationTable is the DynamoDB donations.Store keyed by "donationId".
type DonationTable struct {
	client     DynamoAPI
	table      string
	emailIndex string
}

// NewDonationTable returns a DonationTable over table using the default email index.
func NewDonationTable(client DynamoAPI, table string) *DonationTable {
	return &DonationTable{client: client, table: table, emailIndex: DefaultDonationEmailIndex}
}

func (t *DonationTable) Put(ctx context.Context, d *donations.Donation) error {
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("encode donation: %w", err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(donationId)"),
	})
	if isConditionFailed(err) {
		return donations.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("put donation: %w", err)
	}
	return nil
}

func (t *DonationTable) Get(ctx context.Context, donationID string) (*donations.Donation, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.table),
		Key:            stringKey("donationId", donationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get donation: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, donations.ErrNotFound
	}

	var d donations.Donation
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, fmt.Errorf("decode donation: %w", err)
	}
	return &d, nil
}

func (t *DonationTable) ListByEmail(ctx context.Context, email string) ([]donations.Donation, error) {
	keyCond := expression.Key("email").Equal(expression.Value(email))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build donation query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(t.client, &dynamodb.QueryInput{
		TableName:                 aws.String(t.table),
		IndexName:                 aws.String(t.emailIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})

	var out []donations.Donation
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query donations: %w", err)
		}
		var batch []donations.Donation
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("decode donations: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func stringKey(attr, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attr: &types.AttributeValueMemberS{Value: value},
	}
}

func isConditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
