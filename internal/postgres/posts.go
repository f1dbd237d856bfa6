package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-forum/internal/domain"
)

const postColumns = `id::text, user_id::text, category, title, content, COALESCE(preview, ''),
	post_type, COALESCE(image_url, ''), COALESCE(link_url, ''), COALESCE(flair_text, ''),
	COALESCE(flair_color, ''), upvotes, downvotes, score, comment_count, created_at, updated_at`

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Category,
		&p.Title,
		&p.Content,
		&p.Preview,
		&p.PostType,
		&p.ImageURL,
		&p.LinkURL,
		&p.FlairText,
		&p.FlairColor,
		&p.Upvotes,
		&p.Downvotes,
		&p.Score,
		&p.CommentCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPosts(rows pgx.Rows) ([]domain.Post, error) {
	defer rows.Close()

	posts := make([]domain.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	return posts, nil
}

// CreatePost inserts a new post
func (r *Repository) CreatePost(ctx context.Context, post domain.Post) error {
	query := `
		INSERT INTO forum_posts (id, user_id, category, title, content, preview, post_type,
			image_url, link_url, flair_text, flair_color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		post.ID,
		post.UserID,
		post.Category,
		post.Title,
		post.Content,
		post.Preview,
		string(post.PostType),
		post.ImageURL,
		post.LinkURL,
		post.FlairText,
		post.FlairColor,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating post: %w", err)
	}
	return nil
}

// GetPost retrieves a post by ID
func (r *Repository) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM forum_posts WHERE id = $1`
	post, err := scanPost(r.pool.QueryRow(ctx, query, postID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("getting post: %w", err)
	}
	return post, nil
}

// GetPostsByIDs loads posts in the order of ids, skipping ids that no longer exist
func (r *Repository) GetPostsByIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	if len(ids) == 0 {
		return []domain.Post{}, nil
	}

	query := `SELECT ` + postColumns + ` FROM forum_posts WHERE id = ANY($1::uuid[])`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("getting posts by ids: %w", err)
	}
	found, err := collectPosts(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]domain.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// ListPosts retrieves posts matching filter
func (r *Repository) ListPosts(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" && filter.Category != domain.CategoryAll {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		where = append(where, fmt.Sprintf("created_at > $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + postColumns + ` FROM forum_posts`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	switch filter.Order {
	case domain.OrderScore:
		b.WriteString(" ORDER BY score DESC, created_at DESC")
	default:
		b.WriteString(" ORDER BY created_at DESC")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return collectPosts(rows)
}

// ListCategories returns every category that has at least one post
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM forum_posts ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeletePost removes a post owned by userID
func (r *Repository) DeletePost(ctx context.Context, postID, userID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM forum_posts WHERE id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	return r.missingOrForeign(ctx, postID)
}

// missingOrForeign explains why a write scoped to the author matched no row
func (r *Repository) missingOrForeign(ctx context.Context, postID string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM forum_posts WHERE id = $1)`, postID).Scan(&exists); err != nil {
		return fmt.Errorf("checking post existence: %w", err)
	}
	if exists {
		return domain.ErrNotPostOwner
	}
	return domain.ErrPostNotFound
}

// UpdatePost saves the editable fields of a post owned by post.UserID
func (r *Repository) UpdatePost(ctx context.Context, post domain.Post) (*domain.Post, error) {
	query := `
		UPDATE forum_posts
		SET title = $3, content = $4, preview = $5, image_url = NULLIF($6, ''), link_url = NULLIF($7, ''),
			flair_text = NULLIF($8, ''), flair_color = NULLIF($9, ''), updated_at = $10
		WHERE id = $1 AND user_id = $2
		RETURNING ` + postColumns
	updated, err := scanPost(r.pool.QueryRow(ctx, query,
		post.ID,
		post.UserID,
		post.Title,
		post.Content,
		post.Preview,
		post.ImageURL,
		post.LinkURL,
		post.FlairText,
		post.FlairColor,
		post.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missingOrForeign(ctx, post.ID)
		}
		return nil, fmt.Errorf("updating post: %w", err)
	}
	return updated, nil
}

// Vote toggles userID's vote on a post and updates the post's counters in
// the same transaction. Repeating a vote removes it; the opposite vote flips it.
func (r *Repository) Vote(ctx context.Context, postID, userID string, voteType domain.VoteType) (*domain.VoteResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning vote transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id::text FROM forum_posts WHERE id = $1 FOR UPDATE`, postID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("locking post: %w", err)
	}

	var existing string
	err = tx.QueryRow(ctx,
		`SELECT vote_type FROM forum_votes WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	).Scan(&existing)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("getting existing vote: %w", err)
	}

	next, upDelta, downDelta := voteTransition(domain.VoteType(existing), voteType)
	switch {
	case existing == "":
		_, err = tx.Exec(ctx,
			`INSERT INTO forum_votes (post_id, user_id, vote_type) VALUES ($1, $2, $3)`,
			postID, userID, string(next),
		)
	case next == "":
		_, err = tx.Exec(ctx,
			`DELETE FROM forum_votes WHERE post_id = $1 AND user_id = $2`,
			postID, userID,
		)
	default:
		_, err = tx.Exec(ctx,
			`UPDATE forum_votes SET vote_type = $3 WHERE post_id = $1 AND user_id = $2`,
			postID, userID, string(next),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("saving vote: %w", err)
	}

	query := `
		UPDATE forum_posts
		SET upvotes = upvotes + $2, downvotes = downvotes + $3, score = score + $2 - $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + postColumns
	post, err := scanPost(tx.QueryRow(ctx, query, postID, upDelta, downDelta, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("updating post counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing vote: %w", err)
	}

	return &domain.VoteResult{Post: post, Vote: next}, nil
}

// voteTransition returns the vote left after casting incoming over
// existing ("" for none) and the resulting counter changes. Repeating a
// vote removes it; the opposite vote flips it.
func voteTransition(existing, incoming domain.VoteType) (next domain.VoteType, upDelta, downDelta int64) {
	next = incoming
	if existing == incoming {
		next = ""
	}
	up, down := voteCounts(next)
	oldUp, oldDown := voteCounts(existing)
	return next, up - oldUp, down - oldDown
}

func voteCounts(v domain.VoteType) (up, down int64) {
	switch v {
	case domain.VoteUp:
		return 1, 0
	case domain.VoteDown:
		return 0, 1
	}
	return 0, 0
}

// GetUserVote returns userID's current vote on a post, or "" if none
func (r *Repository) GetUserVote(ctx context.Context, postID, userID string) (domain.VoteType, error) {
	var v string
	err := r.pool.QueryRow(ctx,
		`SELECT vote_type FROM forum_votes WHERE post_id = $1 AND user_id = $2`,
		postID, userID,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting vote: %w", err)
	}
	return domain.VoteType(v), nil
}

// CreateComment inserts a comment and bumps the post's comment count,
// returning the updated post
func (r *Repository) CreateComment(ctx context.Context, comment domain.Comment) (*domain.Post, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning comment transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO forum_comments (id, post_id, user_id, parent_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $6)`,
		comment.ID,
		comment.PostID,
		comment.UserID,
		comment.ParentID,
		comment.Content,
		comment.CreatedAt,
	)
	if err != nil {
		return nil, commentWriteError(err)
	}

	query := `
		UPDATE forum_posts SET comment_count = comment_count + 1
		WHERE id = $1
		RETURNING ` + postColumns
	post, err := scanPost(tx.QueryRow(ctx, query, comment.PostID))
	if err != nil {
		return nil, fmt.Errorf("incrementing comment count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing comment: %w", err)
	}
	return post, nil
}

// commentWriteError tells a missing post apart from a missing parent comment
func commentWriteError(err error) error {
	if constraint, ok := violatedConstraint(err, codeForeignKeyViolation); ok {
		switch constraint {
		case commentsPostForeignKey:
			return domain.ErrPostNotFound
		case commentsParentForeignKey:
			return domain.ErrCommentNotFound
		}
	}
	return fmt.Errorf("creating comment: %w", err)
}

// ListComments retrieves a post's comments, oldest first
func (r *Repository) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	query := `
		SELECT id::text, post_id::text, user_id::text, COALESCE(parent_id::text, ''), content,
			upvotes, downvotes, score, created_at, updated_at
		FROM forum_comments
		WHERE post_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		err := rows.Scan(
			&c.ID,
			&c.PostID,
			&c.UserID,
			&c.ParentID,
			&c.Content,
			&c.Upvotes,
			&c.Downvotes,
			&c.Score,
			&c.CreatedAt,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
