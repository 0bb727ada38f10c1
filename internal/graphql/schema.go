package graphql

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// createdAt сериализуется строкой миллисекунд Unix-эпохи: значение
// createdAt последнего поста страницы передаётся следующим запросом
// как cursor. Клиент трактует обе строки как непрозрачные.
const schemaText = `
type User {
  id: Int!
  username: String!
  email: String!
  createdAt: String!
}

type Post {
  id: Int!
  title: String!
  text: String!
  textSnippet(snippetLimit: Int! = 50): String!
  points: Int!
  voteStatus: Int
  creatorId: Int!
  creator: User!
  createdAt: String!
}

type PaginatedPosts {
  posts: [Post!]!
  hasMore: Boolean!
}

type FieldError {
  field: String!
  message: String!
}

type UserResponse {
  errors: [FieldError!]
  user: User
  token: String
}

input RegisterOptions {
  email: String!
  username: String!
  password: String!
}

input LoginOptions {
  usernameOrEmail: String!
  password: String!
}

input PostOptions {
  title: String!
  text: String!
}

type Query {
  posts(limit: Int!, cursor: String): PaginatedPosts!
  post(id: Int!): Post
  me: User
}

type Mutation {
  register(options: RegisterOptions!): UserResponse!
  login(options: LoginOptions!): UserResponse!
  forgotPassword(email: String!): Boolean!
  changePassword(token: String!, newPassword: String!): UserResponse!
  createPost(options: PostOptions!): Post!
  updatePost(id: Int!, title: String, text: String): Post
  deletePost(id: Int!): Boolean!
  vote(postId: Int!, value: Int!): Boolean!
}
`

var schema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaText})
